package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"quantfeed.com/internal/quotes"
	"quantfeed.com/pkg/config"
	"quantfeed.com/pkg/logger"
	"quantfeed.com/pkg/trace"
)

const service = "feed-service"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := &quotes.Cfg{}
	_, err := config.LoadAndWatch(service, cfg, func(next interface{}) {
		if c, ok := next.(*quotes.Cfg); ok {
			logger.Warn(context.Background(), "config changed on disk, restart to apply",
				zap.String("mode", c.Feed.Mode), zap.Int("subscriptions", len(c.Subscriptions)))
		}
	})
	if err != nil {
		panic(fmt.Sprintf("load config: %+v", err))
	}
	if cfg.Name == "" {
		cfg.Name = service
	}

	logger.InitWithFile(cfg.Name, cfg.Log.Level, cfg.Log.File)

	err = run(ctx, cfg)
	if err != nil {
		logger.Error(ctx, "feed finished with errors", zap.Error(err))
	}
	logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *quotes.Cfg) error {
	shutdownTrace, err := trace.Init(ctx, cfg.Name, cfg.Trace)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTrace(context.Background()) }()

	app, err := quotes.NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	return app.Run(ctx)
}
