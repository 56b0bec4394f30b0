package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReminderStage(t *testing.T) {
	day := 24 * time.Hour
	cases := []struct {
		name    string
		overdue time.Duration
		want    int
	}{
		{"not yet due for a reminder", 2 * day, 0},
		{"first nudge", 3 * day, 1},
		{"between first and second", 10 * day, 1},
		{"firmer reminder", 14 * day, 2},
		{"final notice", 45 * day, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, reminderStage(tc.overdue, defaultDunningStages))
		})
	}
}

func TestReminderStageCustomStages(t *testing.T) {
	stages := []time.Duration{time.Hour}
	assert.Equal(t, 0, reminderStage(30*time.Minute, stages))
	assert.Equal(t, 1, reminderStage(2*time.Hour, stages))
}
