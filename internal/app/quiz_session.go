package app

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"flashnotes/internal/cache"
	"flashnotes/internal/domain"
	"flashnotes/internal/selection"
)

// QuizState is the state of a quiz session.
type QuizState string

const (
	StateAwaitingAnswer QuizState = "awaitingAnswer"
	StateAnswerShown    QuizState = "answerShown"
	StateCycleComplete  QuizState = "cycleComplete"
)

// MissMarker records a missed question at the remote store.
type MissMarker interface {
	IncrementMissCount(ctx context.Context, ownerID, id string) error
}

// QuizView is a snapshot for rendering. Answer and Explanation are only
// filled once the answer has been revealed.
type QuizView struct {
	State       QuizState `json:"state"`
	NoteID      string    `json:"noteId,omitempty"`
	Title       string    `json:"title,omitempty"`
	Question    string    `json:"question,omitempty"`
	Answer      string    `json:"answer,omitempty"`
	Explanation string    `json:"explanation,omitempty"`
	MissCount   int       `json:"missCount"`
	MissMarked  bool      `json:"missMarked"`
	Seen        int       `json:"seen"`
	Total       int       `json:"total"`
}

// QuizSession drills a deck in random order, one full cycle at a time.
type QuizSession struct {
	ownerID string
	marker  MissMarker
	cache   *cache.Cache
	rnd     selection.Source
	logger  *slog.Logger

	mu         sync.Mutex
	deck       []domain.Note
	cycle      *selection.Cycle
	current    int
	state      QuizState
	marked     bool
	marking    bool
	generation int
}

// QuizOption configures a QuizSession.
type QuizOption func(*QuizSession)

// WithRandom makes question order reproducible.
func WithRandom(rnd selection.Source) QuizOption {
	return func(s *QuizSession) { s.rnd = rnd }
}

// WithCache keeps the cached miss counters in step with marked misses.
func WithCache(c *cache.Cache) QuizOption {
	return func(s *QuizSession) { s.cache = c }
}

func WithQuizLogger(logger *slog.Logger) QuizOption {
	return func(s *QuizSession) { s.logger = logger }
}

// NewQuizSession snapshots deck and picks the first question. An empty deck
// yields a session in StateCycleComplete; Start reports it.
func NewQuizSession(ownerID string, deck []domain.Note, marker MissMarker, opts ...QuizOption) *QuizSession {
	s := &QuizSession{ownerID: ownerID, marker: marker}
	for _, opt := range opts {
		opt(s)
	}
	if s.rnd == nil {
		s.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.loadDeckLocked(deck)
	return s
}

// StartQuiz opens a session over the cached deck of ownerID. The session is
// returned even when the deck is empty, together with the ErrNoQuizData failure.
func StartQuiz(ctx context.Context, ownerID string, c *cache.Cache, marker MissMarker, opts ...QuizOption) (*QuizSession, error) {
	if ownerID == "" {
		return nil, domain.ErrNotSignedIn
	}
	deck, err := c.Load(ctx)
	if err != nil {
		return nil, domain.Fail(domain.CodeNoQuizData, "start quiz", err)
	}
	s := NewQuizSession(ownerID, deck, marker, append([]QuizOption{WithCache(c)}, opts...)...)
	return s, s.Start()
}

// Start reports ErrNoQuizData when there is nothing to drill.
func (s *QuizSession) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.deck) == 0 {
		return domain.Fail(domain.CodeNoQuizData, "start quiz", domain.ErrNoQuizData)
	}
	return nil
}

// View returns the current snapshot.
func (s *QuizSession) View() QuizView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Reveal shows the answer of the current question.
func (s *QuizSession) Reveal() (QuizView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateAwaitingAnswer:
		s.state = StateAnswerShown
	case StateAnswerShown:
	default:
		return s.viewLocked(), domain.ErrInvalidTransition
	}
	return s.viewLocked(), nil
}

// Advance moves to the next question, or to StateCycleComplete when every
// question of the deck has been shown. Skipping an unrevealed question is allowed.
func (s *QuizSession) Advance() (QuizView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateCycleComplete {
		return s.viewLocked(), domain.ErrInvalidTransition
	}
	s.pickLocked()
	return s.viewLocked(), nil
}

// Restart begins a new cycle after the previous one completed.
func (s *QuizSession) Restart() (QuizView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.deck) == 0 {
		return s.viewLocked(), domain.Fail(domain.CodeNoQuizData, "restart quiz", domain.ErrNoQuizData)
	}
	if s.state != StateCycleComplete {
		return s.viewLocked(), domain.ErrInvalidTransition
	}
	s.cycle.Reset()
	s.pickLocked()
	return s.viewLocked(), nil
}

// MarkMissed increments the miss counter of the current question once. On
// failure the action stays available so the operator can retry.
func (s *QuizSession) MarkMissed(ctx context.Context) (QuizView, error) {
	s.mu.Lock()
	switch {
	case s.state == StateAwaitingAnswer:
		defer s.mu.Unlock()
		return s.viewLocked(), domain.ErrAnswerNotShown
	case s.state != StateAnswerShown:
		defer s.mu.Unlock()
		return s.viewLocked(), domain.ErrInvalidTransition
	case s.marked || s.marking:
		defer s.mu.Unlock()
		return s.viewLocked(), domain.ErrMissAlreadyMarked
	}
	s.marking = true
	note := s.deck[s.current]
	generation := s.generation
	s.mu.Unlock()

	err := s.marker.IncrementMissCount(ctx, s.ownerID, note.ID)

	s.mu.Lock()
	s.marking = false
	if err != nil {
		view := s.viewLocked()
		s.mu.Unlock()
		s.logger.Warn("mark missed failed", "note", note.ID, "error", err)
		return view, domain.Fail(domain.CodeMarkMissed, "mark missed", err)
	}
	if generation == s.generation {
		s.marked = true
		s.deck[s.current].MissCount++
	}
	view := s.viewLocked()
	s.mu.Unlock()

	if s.cache != nil {
		if _, err := s.cache.BumpMissCount(ctx, note.ID); err != nil {
			s.logger.Warn("cache miss count update failed", "note", note.ID, "error", err)
		}
	}
	return view, nil
}

// ReplaceDeck installs a new deck snapshot, e.g. after another context wrote
// the cache. A deck holding the same notes, in any order and with any miss
// counters, keeps the session going; any other change restarts it. It
// reports whether it restarted.
func (s *QuizSession) ReplaceDeck(deck []domain.Note) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if byID, ok := sameDeck(s.deck, deck); ok {
		for i := range s.deck {
			s.deck[i].MissCount = byID[s.deck[i].ID].MissCount
		}
		return false
	}
	s.loadDeckLocked(deck)
	return true
}

// Follow applies every deck published on updates until the channel closes.
func (s *QuizSession) Follow(updates <-chan []domain.Note) {
	for deck := range updates {
		if s.ReplaceDeck(deck) {
			s.logger.Info("quiz deck changed, session restarted", "size", len(deck))
		}
	}
}

func (s *QuizSession) loadDeckLocked(deck []domain.Note) {
	s.deck = make([]domain.Note, len(deck))
	copy(s.deck, deck)
	s.cycle = selection.NewCycle(len(s.deck), s.rnd)
	s.pickLocked()
}

func (s *QuizSession) pickLocked() {
	s.generation++
	s.marked = false
	idx, ok := s.cycle.Next()
	if !ok {
		s.state = StateCycleComplete
		return
	}
	s.current = idx
	s.state = StateAwaitingAnswer
}

func (s *QuizSession) viewLocked() QuizView {
	view := QuizView{
		State: s.state,
		Seen:  s.cycle.Seen(),
		Total: len(s.deck),
	}
	if s.state == StateCycleComplete {
		return view
	}
	n := s.deck[s.current]
	view.NoteID = n.ID
	view.Title = n.Title
	view.Question = n.Question
	view.MissCount = n.MissCount
	view.MissMarked = s.marked
	if s.state == StateAnswerShown {
		view.Answer = n.Answer
		view.Explanation = n.Explanation
	}
	return view
}

// sameDeck matches b against a by note id. Session indices keep pointing into
// a, so a reordered b needs no remapping.
func sameDeck(a, b []domain.Note) (map[string]domain.Note, bool) {
	if len(a) != len(b) {
		return nil, false
	}
	byID := make(map[string]domain.Note, len(b))
	for _, n := range b {
		byID[n.ID] = n
	}
	for _, n := range a {
		other, ok := byID[n.ID]
		if !ok || !domain.SameContent(n, other) {
			return nil, false
		}
	}
	return byID, true
}
