// Package backend builds the storage and change-notification stack selected
// by configuration.
package backend

import (
	"context"
	"errors"
	"fmt"

	"billrecords/internal/amqp"
	"billrecords/internal/ledger"
	applog "billrecords/internal/log"
	"billrecords/internal/storage"
	"billrecords/internal/storage/memory"
)

type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// IsValid checks if the backend type is supported
func (bt BackendType) IsValid() bool {
	return bt == SQLiteBackend || bt == MemoryBackend
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	SQLiteDBPath string
	// SeedFile pre-loads the memory backend; ignored by sqlite.
	SeedFile   string
	StorageKey string

	// Empty AMQPURL disables change events.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendResult contains the store, the optional notifier and the hooks the
// server needs around them.
type BackendResult struct {
	Store storage.KeyValueStore
	// Notifier is nil when change events are disabled.
	Notifier ledger.Notifier
	// Ready reports whether the store can serve requests.
	Ready   func(ctx context.Context) error
	Cleanup func() error
}

// Factory creates backends based on configuration
type Factory struct {
	logger *applog.Logger
}

func NewFactory(logger *applog.Logger) *Factory {
	if logger == nil {
		logger = applog.Default(applog.ComponentStorage)
	}
	return &Factory{logger: logger}
}

// CreateBackend opens the configured store. A failing AMQP connection is
// logged and the backend runs without change events.
func (f *Factory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if !config.Type.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", config.Type)
	}

	var res *BackendResult
	switch config.Type {
	case SQLiteBackend:
		store, err := storage.NewSQLiteStore(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		res = &BackendResult{Store: store, Ready: store.Ping}
		f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	case MemoryBackend:
		store := memory.NewFromFile(config.StorageKey, config.SeedFile)
		res = &BackendResult{Store: store, Ready: func(context.Context) error { return nil }}
		f.logger.InfoContext(ctx, "Initialized memory backend", "seed_file", config.SeedFile)
	}

	var client *amqp.Client
	if config.AMQPURL != "" {
		c, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without change events",
				applog.FieldError, err)
		} else {
			client = c
			res.Notifier = c
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	store := res.Store
	res.Cleanup = func() error {
		var errs []error
		if client != nil {
			errs = append(errs, client.Close())
		}
		errs = append(errs, store.Close())
		return errors.Join(errs...)
	}
	return res, nil
}
