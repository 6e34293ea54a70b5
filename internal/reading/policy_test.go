package reading

import (
	"testing"

	"github.com/stemsi/litera-backend/internal/model"
)

func TestEvaluateIntensive(t *testing.T) {
	tests := []struct {
		name    string
		page    model.PageTimerState
		session SessionState
		want    Decision
	}{
		{
			name:    "under cap keeps recording",
			page:    model.PageTimerState{TotalTimeSeconds: 599, RecordedTotalSeconds: 599},
			session: SessionState{TotalPages: 5, Recording: true},
			want:    Decision{},
		},
		{
			name:    "reaching cap stops and caps",
			page:    model.PageTimerState{TotalTimeSeconds: 600, RecordedTotalSeconds: 600},
			session: SessionState{TotalPages: 5, Recording: true},
			want:    Decision{StopRecording: true, CapPage: true},
		},
		{
			name:    "capped page never re-caps",
			page:    model.PageTimerState{TotalTimeSeconds: 900, RecordedTotalSeconds: 600, IsCapped: true},
			session: SessionState{TotalPages: 5},
			want:    Decision{},
		},
		{
			name:    "long dwell without recording is fine",
			page:    model.PageTimerState{TotalTimeSeconds: 3000, RecordedTotalSeconds: 0},
			session: SessionState{TotalPages: 5},
			want:    Decision{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(model.BookCategoryIntensive, tt.page, tt.session)
			if got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestEvaluateExtensive(t *testing.T) {
	tests := []struct {
		name    string
		page    model.PageTimerState
		session SessionState
		want    Decision
	}{
		{
			name:    "under threshold",
			page:    model.PageTimerState{TotalTimeSeconds: 419},
			session: SessionState{TotalPages: 2, Recording: true},
			want:    Decision{},
		},
		{
			name:    "first crossing consumes lifeline on multi-page book",
			page:    model.PageTimerState{TotalTimeSeconds: 420},
			session: SessionState{TotalPages: 2, Recording: true},
			want:    Decision{StopRecording: true, CapPage: true, ConsumeLifeline: true},
		},
		{
			name:    "second crossing resets",
			page:    model.PageTimerState{TotalTimeSeconds: 420},
			session: SessionState{TotalPages: 2, LifelineUsed: true, Recording: true},
			want:    Decision{StopRecording: true, ResetSession: true},
		},
		{
			name:    "single-page book resets immediately, no lifeline",
			page:    model.PageTimerState{TotalTimeSeconds: 420},
			session: SessionState{TotalPages: 1, Recording: true},
			want:    Decision{StopRecording: true, ResetSession: true},
		},
		{
			name:    "N-page book still has exactly one lifeline",
			page:    model.PageTimerState{TotalTimeSeconds: 500},
			session: SessionState{TotalPages: 7},
			want:    Decision{CapPage: true, ConsumeLifeline: true},
		},
		{
			name:    "capped page never re-triggers",
			page:    model.PageTimerState{TotalTimeSeconds: 1000, IsCapped: true},
			session: SessionState{TotalPages: 2, LifelineUsed: true},
			want:    Decision{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(model.BookCategoryExtensive, tt.page, tt.session)
			if got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNormalizePageState(t *testing.T) {
	// Legacy intensive record: counters crossed the cap but the explicit flag
	// was never written.
	st := NormalizePageState(model.BookCategoryIntensive,
		model.PageTimerState{TotalTimeSeconds: 700, RecordedTotalSeconds: 600})
	if !st.IsCapped {
		t.Fatal("intensive record at the recording cap must normalize to capped")
	}

	st = NormalizePageState(model.BookCategoryIntensive,
		model.PageTimerState{TotalTimeSeconds: 700, RecordedTotalSeconds: 599})
	if st.IsCapped {
		t.Fatal("intensive record under the cap must stay uncapped")
	}

	st = NormalizePageState(model.BookCategoryExtensive,
		model.PageTimerState{TotalTimeSeconds: 420})
	if !st.IsCapped {
		t.Fatal("extensive record past overtime must normalize to capped")
	}

	st = NormalizePageState(model.BookCategoryExtensive,
		model.PageTimerState{TotalTimeSeconds: 419, IsCapped: true})
	if !st.IsCapped {
		t.Fatal("explicit cap flag must survive normalization")
	}
}

func TestCanAdvance(t *testing.T) {
	if CanAdvance(119) {
		t.Fatal("dwell gate must hold below 120s")
	}
	if !CanAdvance(120) {
		t.Fatal("dwell gate must open at 120s")
	}
}
