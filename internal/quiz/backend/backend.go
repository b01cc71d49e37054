// Package backend opens the durable store selected by configuration.
package backend

import (
	"context"
	"fmt"

	"timed-quiz/internal/config"
	"timed-quiz/internal/quiz"
	"timed-quiz/internal/quiz/mongostore"
	"timed-quiz/internal/quiz/sqlite"
)

// Store is the full surface both drivers provide.
type Store interface {
	quiz.CatalogRepository
	quiz.AttemptRepository
	CreateQuiz(ctx context.Context, item quiz.Quiz, questions []quiz.Question) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

type sqliteStore struct {
	*sqlite.SQLiteStore
}

func (s sqliteStore) Close(context.Context) error {
	return s.SQLiteStore.Close()
}

func Open(ctx context.Context, cfg config.Config) (Store, error) {
	switch cfg.StoreDriver {
	case "sqlite":
		store, err := sqlite.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return sqliteStore{store}, nil
	case "mongo":
		store, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}
