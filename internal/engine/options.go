package engine

import (
	"sort"
	"time"

	"github.com/finpoint/finpoint/internal/models"
)

// optionPair is one open-to-close lifecycle of an option position. close
// is nil while the position is still open.
type optionPair struct {
	open  *models.OptionTrade
	close *models.OptionTrade
}

// realized returns the pair's realized P&L: the sum of the signed net
// premiums of both legs. Zero while the pair is open.
func (p *optionPair) realized() float64 {
	if p.close == nil {
		return 0
	}
	return p.open.NetPremium + p.close.NetPremium
}

// OptionMatcher pairs the full option trade history of one (ticker,
// currency) so that open/closed questions can be answered as of any
// historical date, not just today. Recorded ClosedWith back-references
// win; remaining closing trades are matched FIFO against the earliest
// unmatched opening trade of the same contract.
//
// The matcher is built once per batch from the complete history and is
// read-only afterwards, so it is safe to share across parallel workers.
type OptionMatcher struct {
	pairs []optionPair
}

// NewOptionMatcher builds the pairing from the full trade history.
func NewOptionMatcher(trades []*models.OptionTrade) *OptionMatcher {
	ordered := make([]*models.OptionTrade, len(trades))
	copy(ordered, trades)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	byID := make(map[string]*models.OptionTrade, len(ordered))
	for _, t := range ordered {
		byID[t.ID] = t
	}

	m := &OptionMatcher{}
	claimed := make(map[string]bool)

	// First pass: recorded back-references.
	for _, t := range ordered {
		if !t.Code.IsOpening() {
			continue
		}
		if t.ClosedWith == "" {
			continue
		}
		if close, ok := byID[t.ClosedWith]; ok && close.Code.IsClosing() {
			m.pairs = append(m.pairs, optionPair{open: t, close: close})
			claimed[t.ID] = true
			claimed[close.ID] = true
		}
	}

	// Second pass: FIFO by contract for everything unclaimed.
	openQueue := make(map[string][]*models.OptionTrade)
	for _, t := range ordered {
		if claimed[t.ID] {
			continue
		}
		switch {
		case t.Code.IsOpening():
			openQueue[t.Contract] = append(openQueue[t.Contract], t)
		case t.Code.IsClosing():
			queue := openQueue[t.Contract]
			if len(queue) == 0 {
				// Closing trade with no matching open: orphan, ignored
				// for pairing but still counted in day cash deltas.
				continue
			}
			m.pairs = append(m.pairs, optionPair{open: queue[0], close: t})
			openQueue[t.Contract] = queue[1:]
		}
	}
	for _, queue := range openQueue {
		for _, t := range queue {
			m.pairs = append(m.pairs, optionPair{open: t})
		}
	}

	sort.SliceStable(m.pairs, func(i, j int) bool {
		return m.pairs[i].open.Timestamp.Before(m.pairs[j].open.Timestamp)
	})

	return m
}

// openAsOf is the temporal open test: a pair counts as open at date D
// iff its opening day is on or before D and it has no closing trade on
// or before D. A position closed on day 10 is open for days 1 through 9
// and closed from day 10 onward.
func (p *optionPair) openAsOf(date time.Time) bool {
	day := models.DayOf(date)
	if models.DayOf(p.open.Timestamp).After(day) {
		return false
	}
	return p.close == nil || models.DayOf(p.close.Timestamp).After(day)
}

// OpenAsOf returns the opening trades of every position open as of date.
func (m *OptionMatcher) OpenAsOf(date time.Time) []*models.OptionTrade {
	var open []*models.OptionTrade
	for i := range m.pairs {
		if m.pairs[i].openAsOf(date) {
			open = append(open, m.pairs[i].open)
		}
	}
	return open
}

// AnyOpenAsOf reports whether any option position was open as of date.
func (m *OptionMatcher) AnyOpenAsOf(date time.Time) bool {
	for i := range m.pairs {
		if m.pairs[i].openAsOf(date) {
			return true
		}
	}
	return false
}

// RealizedUpTo returns total realized P&L from every pair whose closing
// trade happened on or before date.
func (m *OptionMatcher) RealizedUpTo(date time.Time) float64 {
	day := models.DayOf(date)
	total := 0.0
	for i := range m.pairs {
		p := &m.pairs[i]
		if p.close != nil && !models.DayOf(p.close.Timestamp).After(day) {
			total += p.realized()
		}
	}
	return total
}

// RealizedBetween returns the realized delta attributable to the window
// (prev, date]. Computing the delta of the cumulative totals avoids
// double counting the same pair across consecutive snapshots. A zero
// prev means "since the beginning".
func (m *OptionMatcher) RealizedBetween(prev, date time.Time) float64 {
	if prev.IsZero() {
		return m.RealizedUpTo(date)
	}
	return m.RealizedUpTo(date) - m.RealizedUpTo(prev)
}

// OpeningsOn returns the opening trades whose own timestamp falls on the
// given calendar day. Used for lifecycle capital attribution.
func (m *OptionMatcher) OpeningsOn(date time.Time) []*models.OptionTrade {
	key := models.DayKey(date)
	var out []*models.OptionTrade
	for i := range m.pairs {
		if models.DayKey(m.pairs[i].open.Timestamp) == key {
			out = append(out, m.pairs[i].open)
		}
	}
	return out
}
