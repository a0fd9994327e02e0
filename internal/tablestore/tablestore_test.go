package tablestore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/film-similarity/internal/similarity/model"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/internal/similarity/ranker"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/internal/similarity/store"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/pkg/postgres"
)

func buildTable(t *testing.T) (*ranker.Ranker, *ranker.Table) {
	t.Helper()
	s, err := store.Build([]store.Document{
		{ID: "A", Body: "a robot falls in love", Tags: []string{"sci-fi"}},
		{ID: "B", Body: "a love story in paris", Tags: []string{"romance"}},
		{ID: "C", Body: "robots and love in space", Tags: []string{"sci-fi"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	r, err := ranker.New(model.Build(s), ranker.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	table, err := r.Precompute(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	return r, table
}

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	fs := NewFileStore(filepath.Join(t.TempDir(), "table.tbl"))

	if _, err := fs.Load(ctx); !errors.Is(err, ErrNoTable) {
		t.Fatalf("Load() before Save error = %v, want ErrNoTable", err)
	}

	r, table := buildTable(t)
	if err := fs.Save(ctx, SnapshotOf(table, 3, "feedface00c0ffee")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	snap, err := fs.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if snap.DocCount != 3 || snap.Fingerprint != "feedface00c0ffee" || !reflect.DeepEqual(snap.Rows, table.Rows()) {
		t.Errorf("Load() = %+v", snap)
	}

	loaded, dropped := ranker.LoadTable(r.Model().Store(), snap.Threshold, snap.Rows)
	if dropped != 0 || loaded.Pairs() != table.Pairs() {
		t.Errorf("LoadTable dropped=%d pairs=%d want %d", dropped, loaded.Pairs(), table.Pairs())
	}
}

func TestDisabled(t *testing.T) {
	var s Store = Disabled{}
	if err := s.Save(context.Background(), Snapshot{}); err != nil {
		t.Errorf("Save() error = %v", err)
	}
	if _, err := s.Load(context.Background()); !errors.Is(err, ErrNoTable) {
		t.Errorf("Load() error = %v, want ErrNoTable", err)
	}
}

func TestPostgresStore_RoundTrip(t *testing.T) {
	host := os.Getenv("FR_TEST_POSTGRES_HOST")
	if host == "" {
		t.Skip("FR_TEST_POSTGRES_HOST not set; skipping PostgreSQL test")
	}
	port, _ := strconv.Atoi(os.Getenv("FR_TEST_POSTGRES_PORT"))
	if port == 0 {
		port = 5432
	}
	ctx := context.Background()
	db, err := postgres.New(ctx, config.PostgresConfig{
		Host:         host,
		Port:         port,
		Database:     "films",
		User:         "films",
		Password:     "localdev",
		SSLMode:      "disable",
		MaxOpenConns: 2,
		MaxIdleConns: 1,
	})
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}
	defer db.Close()

	ps := NewPostgresStore(db)
	if err := ps.EnsureSchema(ctx); err != nil {
		t.Fatal(err)
	}
	_, table := buildTable(t)
	for i := 0; i < 2; i++ {
		if err := ps.Save(ctx, SnapshotOf(table, 3, "feedface00c0ffee")); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}
	snap, err := ps.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if snap.Threshold != 0 || snap.DocCount != 3 || snap.Fingerprint != "feedface00c0ffee" || !reflect.DeepEqual(snap.Rows, table.Rows()) {
		t.Errorf("Load() = %+v, want rows %+v", snap, table.Rows())
	}
	var tables int
	if err := db.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM similarity_tables`).Scan(&tables); err != nil {
		t.Fatal(err)
	}
	if tables != 1 {
		t.Errorf("similarity_tables has %d rows after two saves, want 1", tables)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		cfg     config.TableConfig
		want    Store
		wantErr bool
	}{
		{name: "file", cfg: config.TableConfig{Store: "file", Path: "x.tbl"}, want: NewFileStore("x.tbl")},
		{name: "none", cfg: config.TableConfig{Store: "none"}, want: Disabled{}},
		{name: "postgres without db", cfg: config.TableConfig{Store: "postgres"}, wantErr: true},
		{name: "unknown", cfg: config.TableConfig{Store: "s3"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Open(ctx, tt.cfg, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Open() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if reflect.TypeOf(got) != reflect.TypeOf(tt.want) {
				t.Errorf("Open() = %T, want %T", got, tt.want)
			}
		})
	}
}
