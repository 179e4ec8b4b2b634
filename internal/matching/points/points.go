package points

import (
	"errors"
	"math"
	"time"
)

// Duration and extension bounds, in minutes.
const (
	MinDurationMinutes   = 30
	MaxDurationMinutes   = 480
	ExtensionStepMinutes = 30
)

var (
	ErrDurationOutOfRange      = errors.New("duration must be between 30 and 480 minutes")
	ErrExtensionNotPositive    = errors.New("extension minutes must be positive")
	ErrExtensionNotStepAligned = errors.New("extension minutes must be a multiple of 30")
)

// Calculate converts an engagement duration and hourly rate into points:
// round(minutes / 60 × rate). The rate is a float so the derived per-head
// rate of a group extension goes through the same arithmetic as a stored
// solo rate. Sub-hour durations price proportionally, never zero.
func Calculate(durationMinutes int, hourlyRate float64) int {
	return int(math.Round(float64(durationMinutes) / 60.0 * hourlyRate))
}

// ValidateDuration checks a proposed engagement duration
func ValidateDuration(durationMinutes int) error {
	if durationMinutes < MinDurationMinutes || durationMinutes > MaxDurationMinutes {
		return ErrDurationOutOfRange
	}
	return nil
}

// ValidateExtensionMinutes checks a requested extension length: strictly
// positive and aligned to the 30-minute billing step
func ValidateExtensionMinutes(minutes int) error {
	if minutes <= 0 {
		return ErrExtensionNotPositive
	}
	if minutes%ExtensionStepMinutes != 0 {
		return ErrExtensionNotStepAligned
	}
	return nil
}

// CanExtend reports whether an extension is allowed right now. Extensions
// are retroactive catch-up: the matching must be running and its scheduled
// window must already have elapsed.
func CanExtend(status string, scheduledEndAt *time.Time, now time.Time) bool {
	if status != "in_progress" || scheduledEndAt == nil {
		return false
	}
	return !now.Before(*scheduledEndAt)
}
