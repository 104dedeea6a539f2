package scheduler

import (
	"time"

	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/pkg/timeutil"
)

// weeklyLookback is the window a scheduled weekly run settles.
const weeklyLookback = 7 * 24 * time.Hour

// safetyNetLookback is the wider window the safety-net run sweeps for
// bookings the weekly run missed. Idempotency makes the overlap harmless.
const safetyNetLookback = 30 * 24 * time.Hour

// WeeklyPeriod derives the settlement window for a weekly run fired at now:
// the seven days ending at the current day's UTC midnight. Anchoring on
// midnight keeps re-fired runs within the same day idempotent on the same
// window.
func WeeklyPeriod(now time.Time) (time.Time, time.Time) {
	end := timeutil.StartOfDay(now)
	return end.Add(-weeklyLookback), end
}

// SafetyNetPeriod derives the catch-up window for the safety-net run.
func SafetyNetPeriod(now time.Time) (time.Time, time.Time) {
	end := timeutil.StartOfDay(now)
	return end.Add(-safetyNetLookback), end
}
