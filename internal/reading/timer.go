package reading

// PageTimer maintains one cumulative seconds counter per page. Exactly one
// page is active at a time; Tick advances only that page. Counters never
// reset except via Reset (full extensive-session reset).
//
// PageTimer is not safe for concurrent use; the Controller serializes access.
type PageTimer struct {
	active  int
	elapsed map[int]int
}

// NewPageTimer creates a timer seeded with previously persisted totals, so a
// resumed session continues exactly where the counters left off.
func NewPageTimer(seed map[int]int) *PageTimer {
	elapsed := make(map[int]int, len(seed))
	for page, secs := range seed {
		if secs > 0 {
			elapsed[page] = secs
		}
	}
	return &PageTimer{elapsed: elapsed}
}

// Activate makes page the active page. Its counter resumes from the
// accumulated value; it is never zeroed by activation.
func (t *PageTimer) Activate(page int) {
	t.active = page
}

// Active returns the currently active page, or 0 before the first Activate.
func (t *PageTimer) Active() int {
	return t.active
}

// Tick adds one second to the active page's counter and returns the page and
// its new total. Called at 1 Hz by the session host while the page is on
// screen.
func (t *PageTimer) Tick() (page, seconds int) {
	if t.active == 0 {
		return 0, 0
	}
	t.elapsed[t.active]++
	return t.active, t.elapsed[t.active]
}

// Checkpoint returns the absolute accumulated seconds for page, to be written
// into PageTimerState.TotalTimeSeconds. Idempotent: calling it twice without
// an intervening Tick yields the same value.
func (t *PageTimer) Checkpoint(page int) int {
	return t.elapsed[page]
}

// Elapsed is an alias of Checkpoint for display reads.
func (t *PageTimer) Elapsed(page int) int {
	return t.elapsed[page]
}

// Reset wipes every counter. Only the extensive overtime consequence calls
// this.
func (t *PageTimer) Reset() {
	t.elapsed = make(map[int]int)
	t.active = 0
}
