// Package allocation holds the arithmetic that guards donor credit
// writes: how much of a KPI's (or a single update's) measured value is
// still creditable, and whether a candidate write fits. Everything here
// is a pure function of values the caller read from the store, so the
// same code backs both the availability endpoint and the server-side
// validation inside the write transaction.
package allocation

import (
	"strconv"
)

// Scope identifies one credit pool. When KpiUpdateID is nil the scope
// is metric-level and the ceiling is the KPI's summed update values;
// when set it is claim-level and the ceiling is that update's value.
// The two pools are independent ledgers and never reconcile against
// each other.
type Scope struct {
	KpiID       uint
	KpiUpdateID *uint
}

// ClaimLevel reports whether the scope targets a single KPI update.
func (s Scope) ClaimLevel() bool {
	return s.KpiUpdateID != nil
}

// ExceededError is returned when a credit write would push the scope's
// total past its ceiling. Available carries the exact remainder so the
// caller can render a precise message without a second round-trip.
type ExceededError struct {
	Ceiling   float64
	Available float64
}

func (e *ExceededError) Error() string {
	return "allocation exceeds available credit (available: " + FormatAmount(e.Available) + ")"
}

// FormatAmount renders a credit amount the way the UI displays it,
// with two decimal places.
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// Available returns the remaining creditable amount for a scope given
// its ceiling and the sum of all credits already in the scope. The
// result is negative when the scope is over-allocated; callers treat
// any negative value as "nothing more can be credited".
func Available(ceiling, alreadyCredited float64) float64 {
	return ceiling - alreadyCredited
}

// Check validates a candidate credit value against the scope's ceiling.
// alreadyCredited must be the sum of every existing credit in the same
// scope, excluding the row under edit when the write is an update.
// Boundary equality passes: a write that lands the total exactly on the
// ceiling is accepted.
func Check(ceiling, alreadyCredited, candidate float64) error {
	if alreadyCredited+candidate > ceiling {
		return &ExceededError{
			Ceiling:   ceiling,
			Available: Available(ceiling, alreadyCredited),
		}
	}
	return nil
}
