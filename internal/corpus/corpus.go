// Package corpus loads the processed film catalogue and exposes it as the
// documents the similarity engine indexes.
package corpus

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/film-similarity/internal/similarity/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/film-similarity/pkg/errors"
)

// Columns is the header of a processed catalogue file.
var Columns = []string{
	"tconst", "primaryTitle", "originalTitle", "isAdult", "startYear",
	"runtimeMinutes", "genres", "averageRating", "synopsis",
}

// missing is the IMDb placeholder for an unknown value.
const missing = `\N`

// Film is one catalogue entry.
type Film struct {
	ID             string   `json:"id"`
	PrimaryTitle   string   `json:"primary_title"`
	OriginalTitle  string   `json:"original_title"`
	IsAdult        bool     `json:"is_adult"`
	StartYear      int      `json:"start_year"`
	RuntimeMinutes int      `json:"runtime_minutes"`
	Genres         []string `json:"genres"`
	AverageRating  float64  `json:"average_rating"`
	Synopsis       string   `json:"synopsis"`
}

// Catalog is an ordered, immutable set of films.
type Catalog struct {
	films []Film
	byID  map[string]int
}

// Load reads a catalogue file from path.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening corpus %s: %w", path, err)
	}
	defer f.Close()
	c, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("loading corpus %s: %w", path, err)
	}
	return c, nil
}

// Parse reads a catalogue from r. The header row is required; data rows
// that cannot be parsed, or repeat an earlier id, are skipped with a warning.
func Parse(r io.Reader) (*Catalog, error) {
	logger := slog.Default().With("component", "corpus")
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty file", apperrors.ErrCorpusMalformed)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", apperrors.ErrCorpusMalformed, err)
	}
	cols, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	c := &Catalog{byID: make(map[string]int)}
	skipped := 0
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				return nil, fmt.Errorf("reading corpus: %w", err)
			}
			logger.Warn("skipping unreadable row", "line", perr.StartLine, "error", perr.Err)
			skipped++
			continue
		}
		line, _ := cr.FieldPos(0)
		film, err := parseFilm(record, cols)
		if err != nil {
			logger.Warn("skipping malformed row", "line", line, "error", err)
			skipped++
			continue
		}
		if _, dup := c.byID[film.ID]; dup {
			logger.Warn("skipping duplicate film", "line", line, "id", film.ID)
			skipped++
			continue
		}
		c.byID[film.ID] = len(c.films)
		c.films = append(c.films, film)
	}
	logger.Info("corpus loaded", "films", len(c.films), "skipped", skipped)
	return c, nil
}

func columnIndex(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, name := range Columns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", apperrors.ErrCorpusMalformed, name)
		}
	}
	return cols, nil
}

func parseFilm(record []string, cols map[string]int) (Film, error) {
	get := func(name string) (string, error) {
		i := cols[name]
		if i >= len(record) {
			return "", fmt.Errorf("row has %d fields, missing %s", len(record), name)
		}
		return strings.TrimSpace(record[i]), nil
	}
	var f Film
	var err error
	if f.ID, err = get("tconst"); err != nil {
		return Film{}, err
	}
	if f.ID == "" {
		return Film{}, errors.New("empty tconst")
	}
	if f.PrimaryTitle, err = get("primaryTitle"); err != nil {
		return Film{}, err
	}
	if f.OriginalTitle, err = get("originalTitle"); err != nil {
		return Film{}, err
	}
	raw, err := get("isAdult")
	if err != nil {
		return Film{}, err
	}
	if f.IsAdult, err = parseBool(raw); err != nil {
		return Film{}, fmt.Errorf("isAdult: %w", err)
	}
	if raw, err = get("startYear"); err != nil {
		return Film{}, err
	}
	if f.StartYear, err = parseInt(raw); err != nil {
		return Film{}, fmt.Errorf("startYear: %w", err)
	}
	if raw, err = get("runtimeMinutes"); err != nil {
		return Film{}, err
	}
	if f.RuntimeMinutes, err = parseInt(raw); err != nil {
		return Film{}, fmt.Errorf("runtimeMinutes: %w", err)
	}
	if raw, err = get("genres"); err != nil {
		return Film{}, err
	}
	if raw != missing {
		f.Genres = store.ParseTags(raw)
	}
	if raw, err = get("averageRating"); err != nil {
		return Film{}, err
	}
	if raw != missing && raw != "" {
		if f.AverageRating, err = strconv.ParseFloat(raw, 64); err != nil {
			return Film{}, fmt.Errorf("averageRating: %w", err)
		}
	}
	if raw, err = get("synopsis"); err != nil {
		return Film{}, err
	}
	if raw != missing {
		f.Synopsis = raw
	}
	return f, nil
}

func parseInt(raw string) (int, error) {
	if raw == missing || raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func parseBool(raw string) (bool, error) {
	switch raw {
	case missing, "":
		return false, nil
	case "0":
		return false, nil
	case "1":
		return true, nil
	}
	return strconv.ParseBool(raw)
}

// Len returns the number of films.
func (c *Catalog) Len() int {
	return len(c.films)
}

// Films returns the films in catalogue order. The slice must not be modified.
func (c *Catalog) Films() []Film {
	return c.films
}

// Film returns the film with the given id.
func (c *Catalog) Film(id string) (Film, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Film{}, false
	}
	return c.films[i], true
}

// FindByTitle returns the first film whose primary title equals title,
// ignoring case, or failing that the first whose primary title contains it.
func (c *Catalog) FindByTitle(title string) (Film, bool) {
	needle := strings.ToLower(strings.TrimSpace(title))
	if needle == "" {
		return Film{}, false
	}
	for _, f := range c.films {
		if strings.ToLower(f.PrimaryTitle) == needle {
			return f, true
		}
	}
	for _, f := range c.films {
		if strings.Contains(strings.ToLower(f.PrimaryTitle), needle) {
			return f, true
		}
	}
	return Film{}, false
}

// Documents returns the indexable view of the catalogue: synopsis as body
// and genres as tags, in catalogue order.
func (c *Catalog) Documents() []store.Document {
	docs := make([]store.Document, len(c.films))
	for i, f := range c.films {
		docs[i] = store.Document{ID: f.ID, Body: f.Synopsis, Tags: f.Genres}
	}
	return docs
}
