package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveStatus(t *testing.T) {
	cases := []struct {
		name           string
		total, applied int64
		want           InvoiceStatus
	}{
		{"nothing applied", 11800, 0, StatusIssued},
		{"partial", 100000, 30000, StatusPartiallyPaid},
		{"exact", 11800, 11800, StatusPaid},
		{"over", 11800, 12000, StatusPaid},
		{"one short of total", 11800, 11799, StatusPartiallyPaid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DeriveStatus(tc.total, tc.applied))
		})
	}
}

func TestOpen(t *testing.T) {
	assert.True(t, (&Invoice{Status: StatusIssued}).Open())
	assert.True(t, (&Invoice{Status: StatusPartiallyPaid}).Open())
	assert.False(t, (&Invoice{Status: StatusDraft}).Open())
	assert.False(t, (&Invoice{Status: StatusPaid}).Open())
	assert.False(t, (&Invoice{Status: StatusVoid}).Open())
}
