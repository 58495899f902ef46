package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"shardbook/infra/config"
	"shardbook/infra/kafka"
	"shardbook/infra/logging"
	"shardbook/infra/metrics"
	"shardbook/infra/outbox"
	"shardbook/jobs/broadcaster"
	"shardbook/service"
)

func main() {
	// ---------------- Config ----------------

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config load failed: %v", err)
	}

	// ---------------- Logging ----------------

	log, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		logrus.Fatalf("logger init failed: %v", err)
	}

	// ---------------- Metrics ----------------

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// ---------------- Trade outbox ----------------

	var sink service.TradeSink = service.DiscardSink
	var ob *outbox.Outbox
	if cfg.OutboxDir != "" {
		ob, err = outbox.Open(cfg.OutboxDir)
		if err != nil {
			log.Fatalf("outbox init failed: %v", err)
		}
		defer ob.Close()

		outboxSink, err := service.NewOutboxSink(ob)
		if err != nil {
			log.Fatalf("outbox sequence recovery failed: %v", err)
		}
		log.WithField("last_seq", outboxSink.LastSeq()).Info("outbox opened")
		sink = outboxSink
	}

	// ---------------- Engine ----------------

	engine := service.NewEngine(cfg, sink, log, m)
	engine.Start()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// ---------------- Broadcaster ----------------

	var bc *broadcaster.Broadcaster
	if cfg.Broker != "none" {
		pub, err := newPublisher(cfg)
		if err != nil {
			log.Fatalf("publisher init failed: %v", err)
		}
		bc = broadcaster.New(ob, pub, cfg.BroadcastInterval, log, m)
		bc.Start(ctx)
	}

	// ---------------- Admin HTTP ----------------

	var admin *http.Server
	if cfg.AdminAddr != "" {
		admin = &http.Server{
			Addr:              cfg.AdminAddr,
			Handler:           service.NewAdmin(engine, reg, log).Routes(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("admin server exited")
				cancel()
			}
		}()
		log.WithField("addr", cfg.AdminAddr).Info("admin listening")
	}

	// ---------------- Demo feed ----------------

	if cfg.Demo {
		runDemo(ctx, engine, log)
		cancel()
	}

	<-ctx.Done()

	// ---------------- Shutdown ----------------

	if admin != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		_ = admin.Shutdown(shutdownCtx)
		done()
	}

	drainCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
	if err := engine.WaitIdle(drainCtx); err != nil {
		log.WithError(err).Warn("shard queues not empty at shutdown")
	}
	done()
	engine.Stop()

	if bc != nil {
		bc.Wait()
		if err := bc.Close(); err != nil {
			log.WithError(err).Warn("publisher close")
		}
	}

	reporter := service.NewReporter(cfg.PriceScale)
	for _, w := range engine.Workers() {
		reporter.WriteDepth(os.Stdout, w.Symbol(), w.Book(), 10)
	}
}

func newPublisher(cfg config.Config) (broadcaster.Publisher, error) {
	switch cfg.Broker {
	case "sarama":
		return broadcaster.NewSaramaPublisher(cfg.Brokers, cfg.Topic)
	case "kafka-go":
		return kafka.NewProducer(cfg.Brokers, cfg.Topic), nil
	default:
		return nil, errors.Newf("unknown broker %q", cfg.Broker)
	}
}

