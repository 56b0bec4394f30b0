package middlewares

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCurrencyValidation(t *testing.T) {
	type payload struct {
		Currency string `validate:"required,currency"`
	}

	for _, ok := range []string{"INR", "inr", "Eur"} {
		assert.NoError(t, ValidateStruct(payload{Currency: ok}), ok)
	}
	for _, bad := range []string{"", "IN", "INRR", "IN1", "in-"} {
		assert.Error(t, ValidateStruct(payload{Currency: bad}), bad)
	}
}
