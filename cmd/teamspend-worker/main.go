package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"teamspend/internal/amqp"
	"teamspend/internal/cli"
	"teamspend/internal/log"
	"teamspend/internal/metrics"
	"teamspend/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg := cli.LoadAndValidateConfig(cli.SetupLogger(nil))
	logger := cli.SetupLogger(cfg).WithComponent(log.ComponentWorker)

	logger.Info("Starting teamspend-worker",
		"audit_interval", cfg.AuditInterval,
		"amqp_enabled", cfg.AMQPURL != "")

	// The worker only reads the store; it consumes events instead of
	// publishing them.
	storeCfg := *cfg
	storeCfg.AMQPURL = ""

	reg := metrics.New()
	res := cli.InitBackend(context.Background(), logger, &storeCfg, reg)
	defer res.Cleanup()

	var consumer *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		consumer, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer consumer.Close()
	} else {
		logger.Info("No AMQP_URL configured, running periodic audits only")
	}

	auditor := worker.NewAuditWorker(res.Store, reg, cfg.AuditConcurrency)

	ctx, done := cli.GracefulShutdown(logger, 10*time.Second, nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return auditor.Run(gctx, cfg.AuditInterval)
	})
	if consumer != nil {
		g.Go(func() error {
			return consumer.ConsumeEvents(gctx, auditor.HandleEvent)
		})
	}
	if cfg.WorkerMetricsPort != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", reg.Handler())
		metricsSrv := &http.Server{
			Addr:              ":" + cfg.WorkerMetricsPort,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsSrv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", log.FieldError, err)
		res.Cleanup()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
