package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type slotRequest struct {
	Date      string `validate:"required,date"`
	StartTime string `validate:"required,clock"`
	EndTime   string `validate:"omitempty,clock"`
}

func TestScheduleTags(t *testing.T) {
	v := New()

	tests := []struct {
		name  string
		req   slotRequest
		valid bool
	}{
		{"valid", slotRequest{Date: "2025-01-10", StartTime: "09:00"}, true},
		{"seconds tolerated", slotRequest{Date: "2025-01-10", StartTime: "09:00:00"}, true},
		{"bad date", slotRequest{Date: "10/01/2025", StartTime: "09:00"}, false},
		{"impossible date", slotRequest{Date: "2025-02-30", StartTime: "09:00"}, false},
		{"bad clock", slotRequest{Date: "2025-01-10", StartTime: "9am"}, false},
		{"bad optional clock", slotRequest{Date: "2025-01-10", StartTime: "09:00", EndTime: "25:00"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.req)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestDescribe(t *testing.T) {
	err := New().Struct(slotRequest{Date: "bad"})
	require.Error(t, err)

	msg := Describe(err)
	assert.Contains(t, msg, "Date must be a date (YYYY-MM-DD)")
	assert.Contains(t, msg, "StartTime is required")
}
