// lineupd is the reference lineup sync server: it speaks the same REST and
// websocket contract as the league portal so editor clients can be developed
// and tested against a local peer.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/geman220/ECS-Discord-Bot-sub006/internal/config"
	"github.com/geman220/ECS-Discord-Bot-sub006/internal/httpapi"
	"github.com/geman220/ECS-Discord-Bot-sub006/internal/hub"
	"github.com/geman220/ECS-Discord-Bot-sub006/internal/storage"
	"github.com/geman220/ECS-Discord-Bot-sub006/internal/ws"
)

func main() {
	cfg := config.Load()

	log := newLogger(cfg)
	defer log.Sync() //nolint:errcheck

	var store storage.Store
	if cfg.DatabaseURL != "" {
		g, err := storage.OpenGorm(cfg.DatabaseURL)
		if err != nil {
			log.Fatal("open storage", zap.Error(err))
		}
		store = g
		log.Info("using postgres persistence")
	} else {
		store = storage.NewMemory()
		log.Info("using in-memory persistence")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	h := hub.NewHub(ctx, store, log.Named("hub"))
	handler := httpapi.SetupRoutes(h, ws.AllowAll, cfg.CORSAllowOrigins, log)

	srv := &http.Server{Addr: cfg.Addr, Handler: handler}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server failed", zap.Error(err))
		os.Exit(1)
	}
	log.Info("server stopped")
}

func newLogger(cfg config.Config) *zap.Logger {
	if cfg.Production() {
		log, err := zap.NewProduction()
		if err != nil {
			panic(err)
		}
		return log
	}
	log, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	return log
}
