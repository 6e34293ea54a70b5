package reading

import "github.com/stemsi/litera-backend/internal/model"

// Time-policy thresholds, in seconds.
const (
	// IntensiveRecordingCap is the hard per-page audio capture limit for
	// intensive books (10 minutes). Reaching it permanently caps the page.
	IntensiveRecordingCap = 600

	// MinDwellSeconds gates Next navigation: a page cannot be advanced past
	// until it has accumulated this much dwell time (2 minutes). Applied to
	// both categories; see DESIGN.md for the open-question resolution.
	MinDwellSeconds = 120

	// ExtensiveOvertime is the per-page soft limit for extensive books
	// (7 minutes). Crossing it consumes the lifeline or resets the session.
	ExtensiveOvertime = 420
)

// Decision is the policy output for one tick, consumed immediately by the
// Controller with no buffering.
type Decision struct {
	StopRecording   bool
	CapPage         bool
	ConsumeLifeline bool
	ResetSession    bool
}

// SessionState is the cross-page context the policy needs.
type SessionState struct {
	TotalPages   int
	LifelineUsed bool
	Recording    bool
}

// Evaluate is a pure function of (category, page state, session state). It is
// re-evaluated every tick, after the tick has been applied to the page state.
//
// Intensive: each page is independent. Once RecordedTotalSeconds reaches the
// cap the page is capped and recording stops; there is no cross-page
// consequence and no session reset.
//
// Extensive: one lifeline per session, available only when the book has at
// least two pages. The first page to cross the overtime threshold consumes it
// and is capped; any crossing after that (or any crossing on a single-page
// book) resets the whole session. Already-capped pages never re-trigger.
func Evaluate(category model.BookCategory, page model.PageTimerState, session SessionState) Decision {
	switch category {
	case model.BookCategoryIntensive:
		if page.IsCapped {
			return Decision{StopRecording: session.Recording}
		}
		if page.RecordedTotalSeconds >= IntensiveRecordingCap {
			return Decision{StopRecording: session.Recording, CapPage: true}
		}
		return Decision{}

	case model.BookCategoryExtensive:
		if page.IsCapped || page.TotalTimeSeconds < ExtensiveOvertime {
			return Decision{}
		}
		if session.TotalPages >= 2 && !session.LifelineUsed {
			return Decision{StopRecording: session.Recording, CapPage: true, ConsumeLifeline: true}
		}
		return Decision{StopRecording: session.Recording, ResetSession: true}
	}

	return Decision{}
}

// CaptureAllowed reports whether audio capture may start on a page. A capped
// page never records again (until a full extensive reset wipes the state).
func CaptureAllowed(page model.PageTimerState) bool {
	return !page.IsCapped
}

// CanAdvance reports whether the dwell gate permits Next from a page with the
// given accumulated seconds.
func CanAdvance(totalTimeSeconds int) bool {
	return totalTimeSeconds >= MinDwellSeconds
}

// NormalizePageState migrates a persisted PageTimerState to canonical form,
// executed once at load time. Cap state predates the explicit flag, so older
// records carry only the numeric counters; the cap is re-derived from either
// the explicit flag or the counters crossing their category threshold.
func NormalizePageState(category model.BookCategory, page model.PageTimerState) model.PageTimerState {
	if page.IsCapped {
		return page
	}
	switch category {
	case model.BookCategoryIntensive:
		if page.RecordedTotalSeconds >= IntensiveRecordingCap {
			page.IsCapped = true
		}
	case model.BookCategoryExtensive:
		if page.TotalTimeSeconds >= ExtensiveOvertime {
			page.IsCapped = true
		}
	}
	return page
}
