package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"salesbot/app/service/dialog"
	"salesbot/app/service/dispatch"
	"salesbot/app/service/poller"
	"salesbot/app/service/transcript"
	"salesbot/app/util/clock"
	"salesbot/app/util/mylog"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

type Classifier interface {
	Classify(ctx context.Context, text string) dialog.Intent
}

type Normalizer interface {
	Normalize(ctx context.Context, raw string) string
}

type ObjectionAnswerer interface {
	Answer(ctx context.Context, text string) (string, error)
}

type Timing struct {
	ReplyDelay    time.Duration
	QuestionDelay time.Duration
	ErrorBackoff  time.Duration
}

type Snapshot struct {
	ID         string       `json:"id"`
	ChatID     string       `json:"chatId"`
	PropertyID string       `json:"propertyId"`
	State      dialog.State `json:"state"`
	StartedAt  time.Time    `json:"startedAt"`
	Running    bool         `json:"running"`
}

// Session drives one conversation: it polls the gateway for the bound chat,
// feeds accepted messages to the state machine and dispatches the replies.
type Session struct {
	id        string
	chatID    string
	facts     dialog.Facts
	startedAt time.Time

	clk        clock.Clock
	timing     Timing
	machine    *dialog.Machine
	poller     *poller.Poller
	dispatcher *dispatch.Dispatcher
	classifier Classifier
	normalizer Normalizer
	objections ObjectionAnswerer
	journal    dispatch.Journal

	greetOnStart bool

	release     func()
	releaseOnce sync.Once

	running atomic.Bool

	mu    sync.Mutex
	state dialog.State
}

type SessionParams struct {
	ChatID       string
	Facts        dialog.Facts
	Clock        clock.Clock
	Timing       Timing
	Machine      *dialog.Machine
	Poller       *poller.Poller
	Dispatcher   *dispatch.Dispatcher
	Classifier   Classifier
	Normalizer   Normalizer
	Objections   ObjectionAnswerer
	Journal      dispatch.Journal
	GreetOnStart bool
	// Release is called once when the session stops, to give up its inbox.
	Release func()
}

func NewSession(p SessionParams) *Session {
	s := &Session{
		id:           uuid.NewString(),
		chatID:       p.ChatID,
		facts:        p.Facts,
		startedAt:    p.Clock.Now(),
		clk:          p.Clock,
		timing:       p.Timing,
		machine:      p.Machine,
		poller:       p.Poller,
		dispatcher:   p.Dispatcher,
		classifier:   p.Classifier,
		normalizer:   p.Normalizer,
		objections:   p.Objections,
		journal:      p.Journal,
		greetOnStart: p.GreetOnStart,
		release:      p.Release,
		state:        dialog.StateUninitialized,
	}
	s.running.Store(true)

	return s
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) ChatID() string {
	return s.chatID
}

func (s *Session) State() dialog.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

func (s *Session) Running() bool {
	return s.running.Load()
}

// Stop asks the loop to exit. A pending inbox wait returns at once; a reply
// already being delivered completes first.
func (s *Session) Stop() {
	s.running.Store(false)
	s.releaseInbox()
}

func (s *Session) releaseInbox() {
	s.releaseOnce.Do(func() {
		if s.release != nil {
			s.release()
		}
	})
}

func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		ID:         s.id,
		ChatID:     s.chatID,
		PropertyID: s.facts.PropertyID,
		State:      s.State(),
		StartedAt:  s.startedAt,
		Running:    s.Running(),
	}
}

func (s *Session) Run(ctx context.Context) {
	defer s.releaseInbox()
	defer s.running.Store(false)

	log := slog.With("chat_id", s.chatID, "session_id", s.id)

	if s.greetOnStart && s.Running() {
		if err := s.initialize(ctx); err != nil {
			log.Error("Failed to greet contact", "error", err)
		}
	}

	for s.Running() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := s.poller.RunCycle(ctx, s.HandleMessage); err != nil {
			log.Warn("Error running poll cycle", "error", err)
			s.clk.Sleep(s.timing.ErrorBackoff)
		}
	}

	log.Info("Session loop finished", "state", s.State())
}

// HandleMessage advances the conversation by one accepted inbound message.
func (s *Session) HandleMessage(ctx context.Context, msg poller.Message) error {
	s.record(transcript.Entry{Direction: transcript.DirectionIn, Text: msg.Text})

	state := s.State()

	slog.Info("Received message", "chat_id", s.chatID, "state", state, "text", msg.Text)

	switch {
	case state == dialog.StateUninitialized:
		return s.initialize(ctx)
	case state.Terminal():
		slog.Debug("Conversation completed, message ignored", "chat_id", s.chatID)
		return nil
	}

	if d, ok := s.machine.Prefilter(state, msg.Text); ok {
		return s.apply(ctx, state, d)
	}

	if s.objections != nil && s.machine.AcceptsObjections(state) {
		answer, err := s.objections.Answer(ctx, msg.Text)
		if err != nil {
			slog.Warn("Objection handling failed", "chat_id", s.chatID, "error", err)
		} else if answer != "" {
			slog.Info("Answered objection", "chat_id", s.chatID, "state", state)
			_, err = s.dispatcher.Send(ctx, s.chatID, answer, s.timing.ReplyDelay)
			return err
		}
	}

	intent := s.classifier.Classify(ctx, msg.Text)

	d, ok := s.machine.Next(state, intent)
	if !ok {
		slog.Debug("No transition", "chat_id", s.chatID, "state", state, "intent", intent)
		return nil
	}

	return s.apply(ctx, state, d)
}

func (s *Session) initialize(ctx context.Context) error {
	if s.State() != dialog.StateUninitialized {
		return nil
	}

	name := s.normalizer.Normalize(ctx, s.facts.OwnerName)

	return s.apply(ctx, dialog.StateUninitialized, s.machine.Initialize(name))
}

// apply commits the next state before sending, so a failed delivery does not
// replay the transition on the next message.
func (s *Session) apply(ctx context.Context, from dialog.State, d dialog.Decision) error {
	s.mu.Lock()
	s.state = d.Next
	s.mu.Unlock()

	if d.Next != from {
		attrs := []any{"chat_id", s.chatID, "from", from, "to", d.Next, "reason", d.Reason}
		if d.Next.Terminal() || d.Reason == "opt_out" {
			attrs = append(attrs, mylog.TelegramKey, true)
		}
		slog.Info("State transition", attrs...)

		s.record(transcript.Entry{Direction: transcript.DirectionState, State: string(d.Next), Text: d.Reason})
	}

	for _, reply := range d.Replies {
		if _, err := s.dispatcher.Send(ctx, s.chatID, reply.Text, s.delay(reply.Pace)); err != nil {
			return oops.In("engine").With("state", d.Next).Wrapf(err, "failed to deliver reply")
		}
	}

	return nil
}

func (s *Session) delay(p dialog.Pace) time.Duration {
	switch p {
	case dialog.PaceReply:
		return s.timing.ReplyDelay
	case dialog.PaceQuestion:
		return s.timing.QuestionDelay
	default:
		return 0
	}
}

func (s *Session) record(e transcript.Entry) {
	if s.journal == nil {
		return
	}

	e.Time = s.clk.Now()
	if err := s.journal.Append(s.chatID, e); err != nil {
		slog.Warn("Failed to append transcript", "chat_id", s.chatID, "error", err)
	}
}
