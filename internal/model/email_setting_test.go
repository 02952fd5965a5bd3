package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func mondayOnlySchedule() SendingSchedule {
	return SendingSchedule{
		"monday":    {Enabled: true, StartTime: "09:00", EndTime: "17:00"},
		"tuesday":   {Enabled: false},
		"wednesday": {Enabled: false},
		"thursday":  {Enabled: false},
		"friday":    {Enabled: false},
		"saturday":  {Enabled: false},
		"sunday":    {Enabled: false},
	}
}

func TestIsWithinSendingWindow_NoSchedule(t *testing.T) {
	s := &EmailSetting{Timezone: "UTC"}
	assert.True(t, s.IsWithinSendingWindow(time.Now()))
}

func TestIsWithinSendingWindow_MondayWindow(t *testing.T) {
	s := &EmailSetting{Timezone: "UTC", SendingSchedule: mondayOnlySchedule()}

	// 2024-01-01 is a Monday.
	monday10 := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	assert.True(t, s.IsWithinSendingWindow(monday10))

	// Inclusive bounds.
	assert.True(t, s.IsWithinSendingWindow(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)))
	assert.True(t, s.IsWithinSendingWindow(time.Date(2024, 1, 1, 17, 0, 0, 0, time.UTC)))

	// Outside the window on Monday.
	assert.False(t, s.IsWithinSendingWindow(time.Date(2024, 1, 1, 8, 59, 0, 0, time.UTC)))
	assert.False(t, s.IsWithinSendingWindow(time.Date(2024, 1, 1, 17, 1, 0, 0, time.UTC)))

	// Any time on Tuesday is blocked.
	for hour := 0; hour < 24; hour++ {
		tuesday := time.Date(2024, 1, 2, hour, 30, 0, 0, time.UTC)
		assert.False(t, s.IsWithinSendingWindow(tuesday), "tuesday %02d:30 should be blocked", hour)
	}
}

func TestIsWithinSendingWindow_MissingDayBlocks(t *testing.T) {
	s := &EmailSetting{
		Timezone:        "UTC",
		SendingSchedule: SendingSchedule{"monday": {Enabled: true}},
	}
	// Wednesday has no entry at all.
	assert.False(t, s.IsWithinSendingWindow(time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC)))
}

func TestIsWithinSendingWindow_EnabledWithoutBounds(t *testing.T) {
	s := &EmailSetting{
		Timezone:        "UTC",
		SendingSchedule: SendingSchedule{"monday": {Enabled: true}},
	}
	assert.True(t, s.IsWithinSendingWindow(time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC)))
	assert.True(t, s.IsWithinSendingWindow(time.Date(2024, 1, 1, 23, 59, 0, 0, time.UTC)))
}

func TestIsWithinSendingWindow_Timezone(t *testing.T) {
	s := &EmailSetting{
		Timezone:        "America/New_York",
		SendingSchedule: mondayOnlySchedule(),
	}
	// 14:00 UTC on Monday 2024-01-01 is 09:00 in New York: inside the window.
	assert.True(t, s.IsWithinSendingWindow(time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC)))
	// 13:00 UTC is 08:00 local: outside.
	assert.False(t, s.IsWithinSendingWindow(time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC)))
	// 23:00 UTC on Monday is 18:00 local: outside.
	assert.False(t, s.IsWithinSendingWindow(time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC)))
}

func TestIsWithinSendingWindow_NoMidnightWrap(t *testing.T) {
	// A start after end never matches: overnight ranges are not supported.
	s := &EmailSetting{
		Timezone:        "UTC",
		SendingSchedule: SendingSchedule{"monday": {Enabled: true, StartTime: "22:00", EndTime: "02:00"}},
	}
	assert.False(t, s.IsWithinSendingWindow(time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC)))
	assert.False(t, s.IsWithinSendingWindow(time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC)))
}

func TestLocalDate(t *testing.T) {
	s := &EmailSetting{Timezone: "America/New_York"}
	// 02:00 UTC on Jan 2 is still Jan 1 in New York.
	assert.Equal(t, "2024-01-01", s.LocalDate(time.Date(2024, 1, 2, 2, 0, 0, 0, time.UTC)))
}
