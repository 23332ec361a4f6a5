package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"flashnotes/internal/app"
	"flashnotes/internal/cache"
	"flashnotes/internal/domain"
	"flashnotes/internal/retry"
)

var errNoQuiz = errors.New("quiz not started")

// Server exposes the note list and quiz controllers of one workspace over
// JSON endpoints and a websocket feed.
type Server struct {
	workspace *app.Workspace
	list      *app.NoteList
	remote    *app.RemoteNotes
	cache     *cache.Cache
	events    *retry.Broker
	logger    *slog.Logger
	upgrader  websocket.Upgrader

	mu         sync.Mutex
	quiz       *app.QuizSession
	stopFollow context.CancelFunc
}

func NewServer(ws *app.Workspace, list *app.NoteList, remote *app.RemoteNotes, c *cache.Cache, events *retry.Broker, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		workspace: ws,
		list:      list,
		remote:    remote,
		cache:     c,
		events:    events,
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Routes registers every endpoint on a new mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("POST /api/signin", s.handleSignIn)
	mux.HandleFunc("POST /api/signout", s.handleSignOut)

	mux.HandleFunc("GET /api/notes", s.handleListNotes)
	mux.HandleFunc("POST /api/notes", s.handleCreateNote)
	mux.HandleFunc("PUT /api/notes/{id}", s.handleEditNote)
	mux.HandleFunc("DELETE /api/notes/{id}", s.handleDeleteNote)

	mux.HandleFunc("POST /api/quiz", s.handleStartQuiz)
	mux.HandleFunc("GET /api/quiz", s.handleQuizAction("state"))
	mux.HandleFunc("POST /api/quiz/reveal", s.handleQuizAction("reveal"))
	mux.HandleFunc("POST /api/quiz/advance", s.handleQuizAction("advance"))
	mux.HandleFunc("POST /api/quiz/mark", s.handleQuizAction("mark"))
	mux.HandleFunc("POST /api/quiz/restart", s.handleQuizAction("restart"))

	mux.HandleFunc("GET /ws", s.ServeWS)
	return mux
}

// Close stops the running quiz session, if any.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropQuizLocked()
}

func (s *Server) owner() (string, error) {
	owner, ok := s.workspace.Owner()
	if !ok {
		return "", domain.ErrNotSignedIn
	}
	return owner, nil
}

// startQuiz replaces the running session with a new one over the cached
// deck. The session follows later cache changes until it is replaced.
func (s *Server) startQuiz(ctx context.Context) (app.QuizView, error) {
	owner, err := s.owner()
	if err != nil {
		return app.QuizView{}, err
	}
	session, err := app.StartQuiz(ctx, owner, s.cache, s.remote, app.WithQuizLogger(s.logger))
	if session == nil {
		return app.QuizView{}, err
	}

	followCtx, cancel := context.WithCancel(context.Background())
	updates, serr := s.cache.Subscribe(followCtx)
	if serr != nil {
		cancel()
		s.logger.Warn("quiz will not follow cache changes", "error", serr)
	} else {
		go session.Follow(updates)
	}

	s.mu.Lock()
	s.dropQuizLocked()
	s.quiz = session
	s.stopFollow = cancel
	s.mu.Unlock()
	return session.View(), err
}

func (s *Server) quizAction(ctx context.Context, action string) (app.QuizView, error) {
	if action == "start" {
		return s.startQuiz(ctx)
	}
	s.mu.Lock()
	session := s.quiz
	s.mu.Unlock()
	if session == nil {
		return app.QuizView{}, errNoQuiz
	}

	switch action {
	case "state":
		return session.View(), nil
	case "reveal":
		return session.Reveal()
	case "advance":
		return session.Advance()
	case "mark":
		return session.MarkMissed(ctx)
	case "restart":
		return session.Restart()
	}
	return session.View(), errUnsupported
}

func (s *Server) dropQuizLocked() {
	if s.stopFollow != nil {
		s.stopFollow()
		s.stopFollow = nil
	}
	s.quiz = nil
}
