package engine

import (
	"context"
	"time"

	"salesbot/app/client/greenapi"
	"salesbot/app/config"
	"salesbot/app/service/classifier"
	"salesbot/app/service/dedup"
	"salesbot/app/service/dialog"
	"salesbot/app/service/dispatch"
	"salesbot/app/service/namefmt"
	"salesbot/app/service/objection"
	"salesbot/app/service/poller"
	"salesbot/app/service/transcript"
	"salesbot/app/util/clock"

	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/samber/oops"
)

const redisKeyPrefix = "salesbot:dedup:"

type Gateway interface {
	dispatch.Sender
	poller.NotificationGateway
	poller.JournalGateway
	IDInstance() string
}

var _ do.Shutdownable = (*Service)(nil)

// Service builds sessions with every collaborator wired from configuration.
type Service struct {
	cfg        *config.Config
	clk        clock.Clock
	gateway    Gateway
	classifier Classifier
	normalizer Normalizer
	objections ObjectionAnswerer
	journal    dispatch.Journal

	profile dialog.Profile
	phrases dialog.Phrases

	redisClient *redis.Client
	sharedStore dedup.SignatureStore

	// pump is nil in journal mode.
	pump *poller.Pump
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	profile, err := dialog.ProfileByName(cfg.Engine.Profile)
	if err != nil {
		return nil, oops.In("engine").Wrap(err)
	}

	s := &Service{
		cfg:        cfg,
		clk:        clock.Real{},
		gateway:    do.MustInvoke[*greenapi.Client](di),
		classifier: do.MustInvoke[*classifier.Service](di),
		normalizer: do.MustInvoke[*namefmt.Service](di),
		journal:    do.MustInvoke[*transcript.Service](di),
		profile:    profile,
		phrases:    dialog.NewPhrases(cfg.Dialog.OptOutPhrases, cfg.Dialog.PausePhrases),
	}

	if cfg.GreenAPI.Mode != "journal" {
		s.pump = poller.NewPump(s.gateway, s.clk, cfg.GreenAPI.PollTimeout, cfg.Engine.ErrorBackoff, cfg.Engine.DrainsOnStart())
	}

	if cfg.Objection.Enabled {
		s.objections = do.MustInvoke[*objection.Service](di)
	}

	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, oops.In("engine").Wrapf(err, "failed to parse redis url")
		}

		s.redisClient = redis.NewClient(opts)
		s.sharedStore = dedup.NewRedisStore(s.redisClient, redisKeyPrefix)
	}

	return s, nil
}

// Build creates a session bound to chatID. The session is not started.
func (s *Service) Build(chatID string, facts dialog.Facts) (*Session, error) {
	if chatID == "" {
		return nil, oops.In("engine").Errorf("empty chat id")
	}

	engineCfg := s.cfg.Engine
	filter := dedup.NewFilter(s.clk, engineCfg.InboundWindow, engineCfg.OutboundWindow, engineCfg.RecentIDs, s.sharedStore)

	var (
		source  poller.Source
		release func()
	)
	if s.pump == nil {
		source = poller.NewJournalSource(s.gateway, s.clk, s.cfg.GreenAPI.JournalMinutes,
			s.cfg.GreenAPI.JournalInterval, s.clk.Now(), engineCfg.RecentIDs)
	} else {
		inbox, err := s.pump.Subscribe(chatID)
		if err != nil {
			return nil, err
		}
		source = inbox
		release = func() { s.pump.Unsubscribe(chatID, inbox) }
	}

	return NewSession(SessionParams{
		ChatID:  chatID,
		Facts:   facts,
		Clock:   s.clk,
		Machine: dialog.NewMachine(s.profile, s.phrases, dialog.NewTexts(s.cfg.Dialog.CompanyName, facts)),
		Timing: Timing{
			ReplyDelay:    engineCfg.ReplyDelay,
			QuestionDelay: engineCfg.QuestionDelay,
			ErrorBackoff:  engineCfg.ErrorBackoff,
		},
		Poller:       poller.New(source, poller.NewValidator(s.gateway.IDInstance(), chatID), filter),
		Dispatcher:   dispatch.New(s.clk, s.gateway, filter, s.journal),
		Classifier:   s.classifier,
		Normalizer:   s.normalizer,
		Objections:   s.objections,
		Journal:      s.journal,
		GreetOnStart: engineCfg.GreetsOnStart(),
		Release:      release,
	}), nil
}

// Run feeds the notification queue to the session inboxes until ctx is done.
// In journal mode every session pulls on its own and Run only waits.
func (s *Service) Run(ctx context.Context) error {
	if s.pump == nil {
		<-ctx.Done()
		return nil
	}

	return s.pump.Run(ctx)
}

// Ping checks the shared dedup store, if any.
func (s *Service) Ping(ctx context.Context) error {
	if s.redisClient == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return s.redisClient.Ping(ctx).Err()
}

func (s *Service) Shutdown() error {
	if s.redisClient == nil {
		return nil
	}

	return s.redisClient.Close()
}
