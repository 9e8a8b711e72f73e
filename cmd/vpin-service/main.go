package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"vpinscope.com/internal/config"
	"vpinscope.com/internal/gateway/natspub"
	"vpinscope.com/internal/httpapi"
	"vpinscope.com/internal/marketdata/binance"
	"vpinscope.com/internal/marketdata/source"
	"vpinscope.com/internal/storage/influxsink"
	"vpinscope.com/internal/stream"
	"vpinscope.com/internal/ws"
	pkgconfig "vpinscope.com/pkg/config"
	"vpinscope.com/pkg/logger"
)

const serviceName = "vpin-service"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cfg config.Config
	if _, err := pkgconfig.LoadAndWatch(serviceName, &cfg); err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.Name == "" {
		cfg.Name = serviceName
	}

	logger.Init(cfg.Name, cfg.LogLevel)
	defer logger.Sync()

	bucketSize, err := decimal.NewFromString(cfg.Stream.BucketSize)
	if err != nil {
		logger.Error(ctx, "invalid stream.bucketSize", zap.String("value", cfg.Stream.BucketSize), zap.Error(err))
		return
	}

	bus := stream.NewBus()

	if cfg.NATS.Enabled {
		pub, err := natspub.New(cfg.NATS.URL, cfg.Stream.Symbol)
		if err != nil {
			logger.Error(ctx, "nats connect failed", zap.String("url", cfg.NATS.URL), zap.Error(err))
			return
		}
		defer pub.Close()
		bus.Subscribe(pub)
		logger.Info(ctx, "nats publisher attached", zap.String("url", cfg.NATS.URL))
	}

	if cfg.Influx.Enabled {
		sink := influxsink.New(influxsink.Config{
			URL:    cfg.Influx.URL,
			Token:  cfg.Influx.Token,
			Org:    cfg.Influx.Org,
			Bucket: cfg.Influx.Bucket,
		}, cfg.Stream.Symbol)
		defer sink.Close()
		bus.Subscribe(sink)
		logger.Info(ctx, "influx sink attached", zap.String("url", cfg.Influx.URL))
	}

	// No collaborator is wired by default; escalations are counted and
	// skipped until an agent.Investigator is plugged in here.
	inv := stream.NewInvestigations(nil, bus, 60*time.Second)

	sup := stream.NewSupervisor(stream.Config{
		Symbol:         cfg.Stream.Symbol,
		BucketSize:     bucketSize,
		WindowSize:     cfg.Stream.WindowSize,
		AlertThreshold: cfg.Stream.AlertThreshold,
		TriggerMargin:  cfg.Stream.TriggerMargin,
		HistorySize:    cfg.Stream.HistorySize,
	}, func() source.Source {
		s := binance.NewSource(cfg.Stream.Symbol)
		if cfg.Source.URL != "" {
			s.BaseURL = cfg.Source.URL
		}
		return s
	}, bus, inv)

	if cfg.Stream.AutoStart {
		sup.Start()
	}

	wsSrv := ws.NewServer(ctx, bus)
	srv := httpapi.NewServer(ctx, cfg.HTTP.Addr, httpapi.NewHandlers(sup, bus, inv, wsSrv))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info(gctx, "http listening", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)

		sup.Stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error(context.Background(), "service exited with error", zap.Error(err))
		return
	}
	logger.Info(context.Background(), "service stopped")
}
