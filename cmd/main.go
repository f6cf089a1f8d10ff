package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path"

	"github.com/KotFed0t/portfolio_tracker/config"
	"github.com/KotFed0t/portfolio_tracker/data"
	"github.com/KotFed0t/portfolio_tracker/data/cache"
	"github.com/KotFed0t/portfolio_tracker/internal/converter/consoleConverter"
	"github.com/KotFed0t/portfolio_tracker/internal/externalApi/cloudStorageApi/googleDriveApi"
	"github.com/KotFed0t/portfolio_tracker/internal/externalApi/eodhdApi"
	"github.com/KotFed0t/portfolio_tracker/internal/externalApi/yahooApi"
	"github.com/KotFed0t/portfolio_tracker/internal/metrics"
	"github.com/KotFed0t/portfolio_tracker/internal/portfolio"
	"github.com/KotFed0t/portfolio_tracker/internal/reportGenerator/xslsxGenerator"
	"github.com/KotFed0t/portfolio_tracker/internal/scheduler"
	"github.com/KotFed0t/portfolio_tracker/internal/service/quoteService"
	"github.com/KotFed0t/portfolio_tracker/internal/service/trackerService"
	"github.com/KotFed0t/portfolio_tracker/internal/transport/cli"
	"github.com/KotFed0t/portfolio_tracker/internal/transport/httpServer"
	"github.com/google/subcommands"
)

// uploads are swept daily at 03:00
const cleanupCrontab = "0 0 3 * * *"

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.MustLoad()

	setupLogger(cfg)

	slog.Debug("config", slog.Any("cfg", cfg))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()

	marketDataApi, err := newMarketDataApi(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return int(subcommands.ExitUsageError)
	}

	// a typed nil *RedisCache must not reach the service
	var quoteCache quoteService.Cache
	if cfg.Redis.Enabled {
		redisClient, err := data.NewRedisClient(ctx, cfg)
		if err != nil {
			slog.Warn("redis unavailable, quote cache disabled", slog.String("err", err.Error()))
		} else {
			defer redisClient.Close()
			quoteCache = cache.NewRedisCache(redisClient, cfg.Cache.QuotesExpiration)
		}
	}

	quoteSrv := quoteService.New(marketDataApi, quoteCache, m)

	var cloudStorage trackerService.CloudStorage
	if cfg.GoogleDrive.Enabled {
		drive, err := googleDriveApi.New(ctx, cfg.GoogleDrive.CredentialsFile, cfg.GoogleDrive.FileTTL)
		if err != nil {
			slog.Error("google drive unavailable, uploads disabled", slog.String("err", err.Error()))
		} else {
			cloudStorage = drive
		}
	}

	tracker := trackerService.New(
		quoteSrv,
		xslsxGenerator.New(),
		cloudStorage,
		portfolio.WithFetchTimeout(cfg.Provider.FetchTimeout),
		portfolio.WithMetrics(m),
	)

	serve := func(ctx context.Context) error {
		sched, err := scheduler.New(ctx)
		if err != nil {
			return err
		}
		if err = sched.NewIntervalJob("refresh portfolio", tracker.RefreshJob, cfg.Jobs.RefreshInterval, false); err != nil {
			return err
		}
		if cloudStorage != nil {
			if err = sched.NewCrontabJob("delete old uploads", tracker.CleanupUploads, cleanupCrontab, false); err != nil {
				return err
			}
		}
		sched.Start()
		defer sched.Stop()

		srv := httpServer.New(cfg.HTTP.Addr, httpServer.NewRouter(httpServer.NewController(tracker), m.Handler()))
		srv.Start()
		defer srv.Stop()

		<-ctx.Done()
		slog.Info("shutting down")

		return nil
	}

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	cli.Register(commander, cli.Deps{
		Tracker:   tracker,
		Converter: consoleConverter.New(cfg.Display.Currency, cfg.Display.WordWrap),
		Serve:     serve,
		Out:       os.Stdout,
		Err:       os.Stderr,
	})

	flag.Parse()

	return int(commander.Execute(ctx))
}

func newMarketDataApi(cfg *config.Config) (quoteService.MarketDataApi, error) {
	switch cfg.Provider.Name {
	case config.ProviderYahoo:
		return yahooApi.New(cfg), nil
	case config.ProviderEodhd:
		if cfg.API.EodhdApi.Token == "" {
			return nil, fmt.Errorf("EODHD_API_KEY is required for provider %q", cfg.Provider.Name)
		}
		return eodhdApi.New(cfg), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider.Name)
	}
}

// setupLogger writes JSON logs to stderr so stdout stays free for command output.
func setupLogger(cfg *config.Config) {
	var logLevel slog.Level

	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(log)
}
