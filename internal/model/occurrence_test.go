package model_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monthcal/internal/caltime"
	"monthcal/internal/model"
)

func TestNewOccurrence_DateEndShiftedBack(t *testing.T) {
	start := caltime.Date(2024, 1, 29, time.UTC)
	end := caltime.Date(2024, 2, 2, time.UTC)

	occ := model.NewOccurrence("Retreat", "", "", start, end)

	assert.Equal(t, "2024-02-01", occ.End.String())
	assert.Equal(t, "2024-01-29", occ.Start.String())
	assert.True(t, occ.AllDay())

	// The caller's value is untouched.
	assert.Equal(t, "2024-02-02", end.String())
}

func TestNewOccurrence_TimedEndUnchanged(t *testing.T) {
	start := caltime.DateTime(time.Date(2024, 3, 30, 10, 0, 0, 0, time.UTC))
	end := caltime.DateTime(time.Date(2024, 3, 30, 12, 0, 0, 0, time.UTC))

	occ := model.NewOccurrence("Meeting", "", "", start, end)

	assert.True(t, occ.End.Equal(end))
	assert.False(t, occ.AllDay())
}

func TestAllDay_Mixed(t *testing.T) {
	start := caltime.Date(2024, 3, 30, time.UTC)
	end := caltime.DateTime(time.Date(2024, 3, 30, 12, 0, 0, 0, time.UTC))

	assert.False(t, model.NewOccurrence("x", "", "", start, end).AllDay())
}

func TestRecordJSON(t *testing.T) {
	occ := model.NewOccurrence(
		"Stammtisch", "Monthly meetup", "Pub",
		caltime.DateTime(time.Date(2024, 3, 30, 19, 0, 0, 0, time.UTC)),
		caltime.DateTime(time.Date(2024, 3, 30, 22, 0, 0, 0, time.UTC)),
	)

	data, err := json.Marshal(occ.Record())
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"title": "Stammtisch",
		"description": "Monthly meetup",
		"location": "Pub",
		"start": "2024-03-30T19:00:00Z",
		"end": "2024-03-30T22:00:00Z"
	}`, string(data))
}

func TestRecordsNeverNil(t *testing.T) {
	data, err := json.Marshal(model.Records(nil))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}
