// Package coverage derives a KPI's proof percentage: the fraction of
// its claims that have at least one temporally-matching evidence
// record. Compute is a pure, order-independent function of the claim
// and evidence sets, so it is safe to call redundantly and cheap to
// snapshot.
package coverage

import (
	"math"
	"time"
)

// Claim is the value view of a KPI update for matching purposes.
type Claim struct {
	ID   uint
	Date *time.Time
}

// Evidence is the value view of an evidence record. ClaimIDs lists the
// updates the evidence is precisely linked to; empty means the
// evidence is coarsely linked to the whole KPI and may match any of
// its claims.
type Evidence struct {
	ID         uint
	Date       *time.Time
	RangeStart *time.Time
	RangeEnd   *time.Time
	ClaimIDs   []uint
}

// Report is the result of a coverage computation.
type Report struct {
	TotalClaims int
	ProvenCount int
	Percent     int
}

// sameDate compares two timestamps as calendar dates.
func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// dateOnly truncates t to midnight UTC so range comparisons ignore
// time-of-day noise in stored timestamps.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Covers reports whether evidence e temporally covers a claim dated on
// day. It matches on exact date equality, or when the day falls within
// the evidence's [RangeStart, RangeEnd] inclusive. Evidence with no
// usable date never matches.
func Covers(e Evidence, day time.Time) bool {
	if e.Date != nil && sameDate(*e.Date, day) {
		return true
	}
	if e.RangeStart != nil && e.RangeEnd != nil {
		d := dateOnly(day)
		if !d.Before(dateOnly(*e.RangeStart)) && !d.After(dateOnly(*e.RangeEnd)) {
			return true
		}
	}
	return false
}

// appliesTo reports whether evidence e is linked to the given claim:
// precisely-linked evidence only applies to its listed claims, while
// coarsely-linked evidence (no ClaimIDs) applies to every claim of the
// KPI it was computed for.
func appliesTo(e Evidence, claimID uint) bool {
	if len(e.ClaimIDs) == 0 {
		return true
	}
	for _, id := range e.ClaimIDs {
		if id == claimID {
			return true
		}
	}
	return false
}

// Compute returns the coverage report for a KPI's claims against the
// evidence linked to it. A claim is proven when any applicable
// evidence covers its date. Claims without a date count toward the
// total but can never be proven. Percent is round(100*proven/total),
// and 0 when there are no claims.
func Compute(claims []Claim, evidence []Evidence) Report {
	r := Report{TotalClaims: len(claims)}
	if len(claims) == 0 {
		return r
	}

	for _, c := range claims {
		if c.Date == nil {
			continue
		}
		for _, e := range evidence {
			if !appliesTo(e, c.ID) {
				continue
			}
			if Covers(e, *c.Date) {
				r.ProvenCount++
				break
			}
		}
	}

	r.Percent = int(math.Round(100 * float64(r.ProvenCount) / float64(r.TotalClaims)))
	return r
}
