package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"salesbot/app/api"
	"salesbot/app/client/factsdb"
	"salesbot/app/client/greenapi"
	"salesbot/app/config"
	"salesbot/app/service/classifier"
	"salesbot/app/service/engine"
	"salesbot/app/service/namefmt"
	"salesbot/app/service/objection"
	"salesbot/app/service/registry"
	"salesbot/app/service/transcript"
	"salesbot/app/util/mylog"

	"github.com/gofiber/fiber/v2/log"
	"github.com/samber/do"
	"golang.org/x/sync/errgroup"
)

func main() {
	di := do.New()
	defer di.Shutdown()
	defer log.Info("Waiting for sessions to finish...")

	mylog.Preinit()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	do.ProvideValue(di, appCtx)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	do.ProvideValue(di, cfg)

	if err = mylog.Init(cfg); err != nil {
		log.Fatalf("logging init failed: %v", err)
	}

	do.Provide(di, greenapi.NewClient)
	do.Provide(di, factsdb.NewClient)
	do.Provide(di, transcript.New)
	do.Provide(di, classifier.New)
	do.Provide(di, namefmt.New)
	do.Provide(di, objection.New)
	do.Provide(di, engine.New)
	do.Provide(di, registry.New)
	do.Provide(di, api.New)

	engineSvc := do.MustInvoke[*engine.Service](di)
	if err = engineSvc.Ping(appCtx); err != nil {
		slog.Warn("Dedup store unreachable, duplicates are not shared", "error", err)
	}

	slog.Info("Service started", "profile", cfg.Engine.Profile, "mode", cfg.GreenAPI.Mode)

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Info("Shutting down...")

		cancel()
	}()

	group, groupCtx := errgroup.WithContext(appCtx)
	group.Go(func() error {
		return engineSvc.Run(groupCtx)
	})
	group.Go(func() error {
		return do.MustInvoke[*api.Server](di).Run(groupCtx)
	})

	if err = group.Wait(); err != nil {
		slog.Error("Service failed", "error", err)
		cancel()
	}
}
