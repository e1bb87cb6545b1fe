package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"golang.org/x/sync/errgroup"

	"github.com/liars-games/liarsdice/internal/buildinfo"
	"github.com/liars-games/liarsdice/internal/cache/cachelru"
	"github.com/liars-games/liarsdice/internal/database"
	statDb "github.com/liars-games/liarsdice/internal/database/stat/database"
	"github.com/liars-games/liarsdice/internal/liarsdice"
	"github.com/liars-games/liarsdice/internal/logging"
	"github.com/liars-games/liarsdice/internal/server"
	"github.com/liars-games/liarsdice/internal/shutdown"
	"github.com/liars-games/liarsdice/internal/transport"
)

var version string

func main() {
	_, _ = fmt.Fprintf(os.Stdout, buildinfo.GreetingCLI, buildinfo.ProjectName, version)

	ctx, done := shutdown.New()
	defer done()

	config := liarsdice.Config{}
	if err := envconfig.Process("", &config); err != nil {
		logging.DefaultLogger().Fatalf("processing the config: %v", err)
	}

	logger := logging.NewLogger(config.Debug)
	ctx = logging.WithLogger(ctx, logger)

	if err := realMain(ctx, config); err != nil {
		logger.Fatalf("main.realMain: %v", err)
	}
}

func realMain(ctx context.Context, config liarsdice.Config) error {
	logger := logging.FromContext(ctx).Named("main.realMain")

	db, err := database.NewFromEnv(ctx, &config.Db)
	if err != nil {
		return fmt.Errorf("new database from env: %w", err)
	}

	defer db.Close(ctx)

	statCache, err := cachelru.NewLRU(config.CacheSize)
	if err != nil {
		return fmt.Errorf("can not create lru cache: %w", err)
	}

	stats := statDb.New(db, statCache)
	manager := liarsdice.NewManager(&config, stats)

	srv, err := server.New(config.Port)
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/health", server.HandleHealth(ctx))
	mux.Handle("/stats/", server.HandleProfileStat(stats))
	mux.Handle("/ws", transport.NewHandler(manager, config.AllowedOrigin))

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := srv.ServeHTTP(ctx, &http.Server{Handler: mux}); err != nil {
			return fmt.Errorf("srv.ServeHTTP: %w", err)
		}

		return nil
	})

	group.Go(func() error {
		profSrv := &http.Server{Addr: ":" + config.ProfPort}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = profSrv.Shutdown(shutdownCtx)
		}()

		if err := profSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("pprof server: %w", err)
		}

		return nil
	})

	group.Go(func() error {
		return manager.Sweep(ctx)
	})

	logger.Infof("%s serving on :%s", buildinfo.ProjectName, config.Port)

	return group.Wait()
}
