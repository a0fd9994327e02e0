// Package tablestore persists precomputed similarity tables so a restart
// does not have to rescore every pair of films.
package tablestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/film-similarity/internal/similarity/ranker"
)

// ErrNoTable is returned by Load when nothing has been saved yet.
var ErrNoTable = errors.New("no similarity table saved")

// Snapshot is a table in identifier-keyed form. Fingerprint identifies the
// corpus and weighting the rows were scored under.
type Snapshot struct {
	Threshold   float64
	DocCount    int
	Fingerprint string
	CreatedAt   time.Time
	Rows        []ranker.TableRow
}

// Store saves and loads the most recent snapshot.
type Store interface {
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context) (Snapshot, error)
}

// SnapshotOf exports t.
func SnapshotOf(t *ranker.Table, docCount int, fingerprint string) Snapshot {
	return Snapshot{
		Threshold:   t.Threshold(),
		DocCount:    docCount,
		Fingerprint: fingerprint,
		CreatedAt:   time.Now().UTC(),
		Rows:        t.Rows(),
	}
}

// Disabled is the Store used when persistence is turned off.
type Disabled struct{}

func (Disabled) Save(ctx context.Context, snap Snapshot) error { return nil }

func (Disabled) Load(ctx context.Context) (Snapshot, error) {
	return Snapshot{}, fmt.Errorf("persistence disabled: %w", ErrNoTable)
}
