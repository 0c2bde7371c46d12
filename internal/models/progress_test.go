package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusOf(t *testing.T) {
	now := time.Now()

	assert.Equal(t, StatusNotStarted, StatusOf(nil, nil))
	assert.Equal(t, StatusInProgress, StatusOf(&now, nil))
	assert.Equal(t, StatusCompleted, StatusOf(&now, &now))
	assert.Equal(t, StatusCompleted, StatusOf(nil, &now))

	var missing *CourseProgress
	assert.Equal(t, StatusNotStarted, missing.Status())
}

func TestPercentageMarshalJSON(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{50, "50"},
		{100.0 / 3, "33.33"},
		{200.0 / 3, "66.67"},
		{100, "100"},
	}
	for _, tc := range tests {
		b, err := json.Marshal(Percentage(tc.in))
		require.NoError(t, err)
		assert.Equal(t, tc.want, string(b))
	}
}

func TestContentBlockProgressUpdateApply(t *testing.T) {
	started := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	completed := started.Add(time.Hour)
	pos := 12.5

	p := ContentBlockProgress{StartedAt: &started, CompletedAt: &completed}
	ContentBlockProgressUpdate{LastVideoPosition: &pos}.Apply(&p)

	assert.Equal(t, &started, p.StartedAt)
	assert.Equal(t, &completed, p.CompletedAt)
	require.NotNil(t, p.LastVideoPosition)
	assert.Equal(t, 12.5, *p.LastVideoPosition)

	// Apply copies values rather than aliasing the update.
	pos = 99
	assert.Equal(t, 12.5, *p.LastVideoPosition)

	assert.True(t, ContentBlockProgressUpdate{}.IsEmpty())
	assert.False(t, ContentBlockProgressUpdate{CompletedAt: &completed}.IsEmpty())
}

func TestContentBlockProgressUpdateDecodesNulls(t *testing.T) {
	var u ContentBlockProgressUpdate
	require.NoError(t, json.Unmarshal([]byte(`{"completed_at":"2026-01-05T09:00:00Z","started_at":null}`), &u))

	assert.Nil(t, u.StartedAt)
	assert.Nil(t, u.LastVideoPosition)
	require.NotNil(t, u.CompletedAt)
	assert.Equal(t, 9, u.CompletedAt.Hour())
}
