package registry

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"salesbot/app/client/factsdb"
	"salesbot/app/config"
	"salesbot/app/service/dialog"
	"salesbot/app/service/engine"
	"salesbot/app/util/mylog"

	"github.com/elliotchance/pie/v2"
	"github.com/samber/do"
	"github.com/samber/oops"
)

var (
	ErrSessionExists   = errors.New("session already running for this chat")
	ErrSessionStopping = errors.New("previous session for this chat is still stopping")
	ErrCapacityReached = errors.New("maximum number of sessions reached")
)

type Runner interface {
	Run(ctx context.Context)
	Stop()
	Snapshot() engine.Snapshot
}

type BuildFunc func(chatID string, facts dialog.Facts) (Runner, error)

type FactsProvider interface {
	FetchFacts(ctx context.Context, propertyID string) (dialog.Facts, error)
}

// entry stays in the table until its loop has returned. A stopping entry still
// holds its chat and its capacity slot but is hidden from List and Status.
type entry struct {
	runner   Runner
	stopping bool
}

var _ do.Shutdownable = (*Service)(nil)

// Service owns every running session. One mutex guards the table; session
// loops run in their own goroutines and share nothing else.
type Service struct {
	appCtx      context.Context
	maxSessions int
	build       BuildFunc
	facts       FactsProvider

	mu       sync.Mutex
	sessions map[string]*entry
	wg       sync.WaitGroup
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)
	engineSvc := do.MustInvoke[*engine.Service](di)

	build := func(chatID string, facts dialog.Facts) (Runner, error) {
		s, err := engineSvc.Build(chatID, facts)
		if err != nil {
			return nil, err
		}
		return s, nil
	}

	return NewWithDeps(
		do.MustInvoke[context.Context](di),
		cfg.Engine.MaxSessions,
		build,
		do.MustInvoke[*factsdb.Client](di),
	), nil
}

func NewWithDeps(appCtx context.Context, maxSessions int, build BuildFunc, facts FactsProvider) *Service {
	return &Service{
		appCtx:      appCtx,
		maxSessions: maxSessions,
		build:       build,
		facts:       facts,
		sessions:    make(map[string]*entry),
	}
}

// StartSession fetches the property facts and starts a session for chatID.
func (s *Service) StartSession(ctx context.Context, chatID, propertyID string) (engine.Snapshot, error) {
	if err := s.admit(chatID); err != nil {
		return engine.Snapshot{}, err
	}

	facts, err := s.facts.FetchFacts(ctx, propertyID)
	if err != nil {
		return engine.Snapshot{}, err
	}

	return s.Start(chatID, facts)
}

// Start registers and launches a session. The loop runs until Stop or until
// the application context ends.
func (s *Service) Start(chatID string, facts dialog.Facts) (engine.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.admitLocked(chatID); err != nil {
		return engine.Snapshot{}, err
	}

	runner, err := s.build(chatID, facts)
	if err != nil {
		return engine.Snapshot{}, oops.In("registry").With("chat_id", chatID).Wrapf(err, "failed to build session")
	}

	s.sessions[chatID] = &entry{runner: runner}
	s.wg.Add(1)
	go s.run(chatID, runner)

	snap := runner.Snapshot()

	slog.Info("Session started",
		"chat_id", chatID,
		"property_id", facts.PropertyID,
		"session_id", snap.ID,
		"active", s.countLocked(),
		mylog.TelegramKey, true,
	)

	return snap, nil
}

func (s *Service) run(chatID string, runner Runner) {
	defer s.wg.Done()

	runner.Run(s.appCtx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.sessions[chatID]; ok && current.runner == runner {
		delete(s.sessions, chatID)
	}
}

func (s *Service) admit(chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.admitLocked(chatID)
}

func (s *Service) admitLocked(chatID string) error {
	if e, ok := s.sessions[chatID]; ok {
		if e.stopping {
			return oops.In("registry").Code("session_stopping").With("chat_id", chatID).Wrap(ErrSessionStopping)
		}
		return oops.In("registry").Code("session_exists").With("chat_id", chatID).Wrap(ErrSessionExists)
	}

	if len(s.sessions) >= s.maxSessions {
		return oops.In("registry").Code("capacity_reached").With("max_sessions", s.maxSessions).Wrap(ErrCapacityReached)
	}

	return nil
}

// Stop asks the session for chatID to exit. Its entry is released only when
// the loop has returned, so the chat cannot be started twice meanwhile.
func (s *Service) Stop(chatID string) bool {
	s.mu.Lock()
	e, ok := s.sessions[chatID]
	if ok && e.stopping {
		ok = false
	}
	if ok {
		e.stopping = true
	}
	s.mu.Unlock()

	if !ok {
		return false
	}

	e.runner.Stop()

	slog.Info("Session stopped", "chat_id", chatID, "state", e.runner.Snapshot().State, mylog.TelegramKey, true)

	return true
}

func (s *Service) StopAll() int {
	s.mu.Lock()
	runners := make([]Runner, 0, len(s.sessions))
	for _, e := range s.sessions {
		if !e.stopping {
			e.stopping = true
			runners = append(runners, e.runner)
		}
	}
	s.mu.Unlock()

	for _, runner := range runners {
		runner.Stop()
	}

	if len(runners) > 0 {
		slog.Info("All sessions stopped", "count", len(runners))
	}

	return len(runners)
}

// List returns snapshots of live sessions ordered by start time.
func (s *Service) List() []engine.Snapshot {
	s.mu.Lock()
	snapshots := make([]engine.Snapshot, 0, len(s.sessions))
	for _, e := range s.sessions {
		if !e.stopping {
			snapshots = append(snapshots, e.runner.Snapshot())
		}
	}
	s.mu.Unlock()

	return pie.SortUsing(snapshots, func(a, b engine.Snapshot) bool {
		if a.StartedAt.Equal(b.StartedAt) {
			return a.ChatID < b.ChatID
		}
		return a.StartedAt.Before(b.StartedAt)
	})
}

func (s *Service) Status(chatID string) (engine.Snapshot, bool) {
	s.mu.Lock()
	e, ok := s.sessions[chatID]
	if ok && e.stopping {
		ok = false
	}
	s.mu.Unlock()

	if !ok {
		return engine.Snapshot{}, false
	}

	return e.runner.Snapshot(), true
}

// Count returns the number of live sessions. Stopping ones are not included.
func (s *Service) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.countLocked()
}

func (s *Service) countLocked() int {
	n := 0
	for _, e := range s.sessions {
		if !e.stopping {
			n++
		}
	}

	return n
}

func (s *Service) Shutdown() error {
	s.StopAll()
	s.wg.Wait()

	return nil
}
