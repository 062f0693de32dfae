package backend

import (
	"context"
	"fmt"
	"log/slog"

	"teamspend/internal/amqp"
	"teamspend/internal/log"
	"teamspend/internal/metrics"
	"teamspend/internal/services"
	"teamspend/internal/storage"
	"teamspend/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger  *log.Logger
	metrics *metrics.Registry
}

// NewFactory creates a new backend factory. reg may be nil.
func NewFactory(logger *log.Logger, reg *metrics.Registry) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger:  logger.WithComponent(log.ComponentBackend),
		metrics: reg,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var store storage.Store
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		store = repo
		f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	case MemoryBackend:
		store = memory.New()
		f.logger.InfoContext(ctx, "Initialized memory backend")
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	// A nil *amqp.Client must not end up inside the interface.
	var publisher services.EventPublisher
	if client := f.connectAMQP(ctx, config); client != nil {
		publisher = client
	}

	svc := services.NewBudgetService(store, publisher, f.metrics, f.logger)
	return &BackendResult{
		Service:       svc,
		Store:         store,
		EventsEnabled: publisher != nil,
		Cleanup:       svc.Close,
	}, nil
}

// connectAMQP dials the broker when configured. Events are optional, so a
// failed dial is logged and the API runs without them.
func (f *DefaultFactory) connectAMQP(ctx context.Context, config Config) *amqp.Client {
	if config.AMQPURL == "" {
		return nil
	}

	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.WithComponent(log.ComponentAMQP).LogFields(ctx, slog.LevelWarn,
			"Failed to initialize AMQP client, continuing without events", log.NewFields().WithError(err))
		return nil
	}
	f.logger.InfoContext(ctx, "Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client
}
