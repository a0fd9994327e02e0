package tablestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/film-similarity/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/pkg/postgres"
)

// Open returns the Store selected by cfg. db is only used, and must be
// non-nil, for the postgres store.
func Open(ctx context.Context, cfg config.TableConfig, db *postgres.Client) (Store, error) {
	switch cfg.Store {
	case "file":
		return NewFileStore(cfg.Path), nil
	case "postgres":
		if db == nil {
			return nil, errors.New("postgres table store needs a database connection")
		}
		s := NewPostgresStore(db)
		if err := s.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return s, nil
	case "none", "":
		return Disabled{}, nil
	}
	return nil, fmt.Errorf("unknown table store %q", cfg.Store)
}
