package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAntiSnipePolicyApply(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	policy := DefaultAntiSnipePolicy()

	tests := []struct {
		name       string
		endTime    time.Time
		extensions int
		expected   time.Time
		extended   bool
	}{
		{"far from deadline", now.Add(time.Hour), 0, now.Add(time.Hour), false},
		{"exactly at window", now.Add(300 * time.Second), 0, now.Add(300 * time.Second), false},
		{"inside window", now.Add(200 * time.Second), 0, now.Add(500 * time.Second), true},
		{"one second left", now.Add(time.Second), 2, now.Add(301 * time.Second), true},
		{"cap reached", now.Add(200 * time.Second), 3, now.Add(200 * time.Second), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, extended := policy.Apply(tt.endTime, now, tt.extensions)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, tt.extended, extended)
			assert.False(t, got.Before(tt.endTime))
		})
	}
}

func TestAntiSnipePolicyUnbounded(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	policy := AntiSnipePolicy{Window: 300 * time.Second, Extension: 300 * time.Second}

	got, extended := policy.Apply(now.Add(10*time.Second), now, 1000)
	assert.True(t, extended)
	assert.Equal(t, now.Add(310*time.Second), got)
}

func TestAntiSnipePolicySaturates(t *testing.T) {
	policy := DefaultAntiSnipePolicy()
	end := maxTime.Add(-time.Second)

	got, extended := policy.Apply(end, end.Add(-time.Second), 0)
	assert.True(t, extended)
	assert.Equal(t, maxTime, got)
}
