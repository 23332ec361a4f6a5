package cli

import (
	"bytes"
	"context"
	"math/rand"
	"strings"
	"testing"

	"flashnotes/internal/app"
	"flashnotes/internal/domain"
)

type countingMarker struct{ calls int }

func (m *countingMarker) IncrementMissCount(context.Context, string, string) error {
	m.calls++
	return nil
}

func TestRunDrill(t *testing.T) {
	deck := []domain.Note{
		{ID: "a", Title: "A", Question: "qa", Answer: "xa", Explanation: "because"},
		{ID: "b", Title: "B", Question: "qb", Answer: "xb"},
	}
	marker := &countingMarker{}
	session := app.NewQuizSession("alice", deck, marker, app.WithRandom(rand.New(rand.NewSource(1))))

	// reveal, miss, miss again, next, skip, restart, quit
	in := strings.NewReader("\nm\nm\n\ns\n\nq\n")
	var out bytes.Buffer
	if err := runDrill(context.Background(), in, &out, session); err != nil {
		t.Fatalf("drill: %v", err)
	}

	text := out.String()
	for _, want := range []string{"Q: q", "A: x", "marked missed (1)", "already marked as missed", "cycle complete (2 questions)"} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
	if marker.calls != 1 {
		t.Fatalf("expected one miss recorded, got %d", marker.calls)
	}
	if session.View().State != app.StateAwaitingAnswer {
		t.Fatalf("expected restarted session, got %s", session.View().State)
	}
}
