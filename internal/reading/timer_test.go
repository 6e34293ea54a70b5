package reading

import "testing"

func TestPageTimerTickAccumulates(t *testing.T) {
	timer := NewPageTimer(nil)
	timer.Activate(1)

	for i := 0; i < 5; i++ {
		timer.Tick()
	}
	if got := timer.Elapsed(1); got != 5 {
		t.Fatalf("expected 5s on page 1, got %d", got)
	}

	timer.Activate(2)
	timer.Tick()
	if got := timer.Elapsed(2); got != 1 {
		t.Fatalf("expected 1s on page 2, got %d", got)
	}
	if got := timer.Elapsed(1); got != 5 {
		t.Fatalf("page 1 must keep its total while inactive, got %d", got)
	}

	// Revisiting resumes from the accumulated value.
	timer.Activate(1)
	timer.Tick()
	if got := timer.Elapsed(1); got != 6 {
		t.Fatalf("expected 6s after revisit tick, got %d", got)
	}
}

func TestPageTimerCheckpointIdempotent(t *testing.T) {
	timer := NewPageTimer(map[int]int{3: 41})
	timer.Activate(3)
	timer.Tick()

	first := timer.Checkpoint(3)
	second := timer.Checkpoint(3)
	if first != 42 || second != 42 {
		t.Fatalf("checkpoint must be idempotent: got %d then %d", first, second)
	}
}

func TestPageTimerSeedAndReset(t *testing.T) {
	timer := NewPageTimer(map[int]int{1: 100, 2: 0})
	if got := timer.Elapsed(1); got != 100 {
		t.Fatalf("expected seeded 100s, got %d", got)
	}
	if got := timer.Elapsed(2); got != 0 {
		t.Fatalf("zero seeds are dropped, got %d", got)
	}

	timer.Reset()
	if got := timer.Elapsed(1); got != 0 {
		t.Fatalf("reset must wipe counters, got %d", got)
	}
	if timer.Active() != 0 {
		t.Fatalf("reset must deactivate, got page %d", timer.Active())
	}
}
