package tablestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/film-similarity/internal/tablefile"
)

// FileStore keeps the table in a single tablefile on local disk.
type FileStore struct {
	path   string
	logger *slog.Logger
}

func NewFileStore(path string) *FileStore {
	return &FileStore{
		path:   path,
		logger: slog.Default().With("component", "table-file-store", "path", path),
	}
}

func (s *FileStore) Save(ctx context.Context, snap Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := tablefile.Write(s.path, tablefile.Meta{
		Threshold:   snap.Threshold,
		DocCount:    snap.DocCount,
		Fingerprint: snap.Fingerprint,
	}, snap.Rows); err != nil {
		return fmt.Errorf("saving table to %s: %w", s.path, err)
	}
	s.logger.Info("similarity table saved", "rows", len(snap.Rows))
	return nil
}

func (s *FileStore) Load(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	r, err := tablefile.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Snapshot{}, fmt.Errorf("%s: %w", s.path, ErrNoTable)
	}
	if err != nil {
		return Snapshot{}, err
	}
	defer r.Close()
	rows, err := r.Rows()
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Threshold:   r.Threshold(),
		DocCount:    r.DocCount(),
		Fingerprint: r.Fingerprint(),
		CreatedAt:   r.CreatedAt(),
		Rows:        rows,
	}, nil
}
