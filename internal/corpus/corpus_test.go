package corpus

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/film-similarity/pkg/errors"
)

const header = "tconst,primaryTitle,originalTitle,isAdult,startYear,runtimeMinutes,genres,averageRating,synopsis\n"

const sample = header +
	`"tt0001","Robot Love","Robot Love",false,2008,98,"Animation,Sci-Fi",8.40,"A robot falls in love."` + "\n" +
	`"tt0002","Paris, Je T'aime","Paris, je t'aime",false,2006,120,"Romance,Drama",7.20,"A love story ""in"" Paris."` + "\n" +
	`"tt0003","Broken Row",x,false,notayear,90,"Drama",6.00,"bad year"` + "\n" +
	`"tt0004","Robots","Robots",false,2005,\N,"Animation, Sci-Fi, ",6.40,""` + "\n" +
	`"tt0001","Robot Love Again","",false,2010,90,"Sci-Fi",5.00,"duplicate"` + "\n" +
	`"tt0005","Too Short"` + "\n"

func TestParse(t *testing.T) {
	c, err := Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if c.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", c.Len())
	}
	paris, ok := c.Film("tt0002")
	if !ok {
		t.Fatal("tt0002 missing")
	}
	if paris.PrimaryTitle != "Paris, Je T'aime" || paris.Synopsis != `A love story "in" Paris.` {
		t.Errorf("quoted fields = %q / %q", paris.PrimaryTitle, paris.Synopsis)
	}
	if paris.StartYear != 2006 || paris.RuntimeMinutes != 120 || paris.AverageRating != 7.2 {
		t.Errorf("numeric fields = %+v", paris)
	}
	robots, _ := c.Film("tt0004")
	if robots.RuntimeMinutes != 0 || !reflect.DeepEqual(robots.Genres, []string{"Animation", "Sci-Fi"}) {
		t.Errorf("tt0004 = %+v", robots)
	}
	love, _ := c.Film("tt0001")
	if love.PrimaryTitle != "Robot Love" {
		t.Errorf("duplicate id replaced the first row: %+v", love)
	}
}

func TestParse_BadHeader(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"missing column", "tconst,primaryTitle\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			if !errors.Is(err, apperrors.ErrCorpusMalformed) {
				t.Errorf("Parse() error = %v, want ErrCorpusMalformed", err)
			}
		})
	}
}

func TestParse_ColumnOrderFromHeader(t *testing.T) {
	input := "synopsis,genres,tconst,primaryTitle,originalTitle,isAdult,startYear,runtimeMinutes,averageRating\n" +
		`"space crew",Sci-Fi,tt9,Voyage,Voyage,1,1999,101,7.5` + "\n"
	c, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	f, ok := c.Film("tt9")
	if !ok || f.Synopsis != "space crew" || !f.IsAdult || f.Genres[0] != "Sci-Fi" {
		t.Errorf("Film(tt9) = %+v, %v", f, ok)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "films.csv")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil || c.Len() != 3 {
		t.Fatalf("Load() = %v, %v", c, err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "absent.csv")); err == nil {
		t.Error("Load(absent) returned nil error")
	}
}

func TestFindByTitle(t *testing.T) {
	c, err := Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		title  string
		wantID string
		found  bool
	}{
		{"robots", "tt0004", true},
		{"ROBOT LOVE", "tt0001", true},
		{"robot", "tt0001", true},
		{"je t'aime", "tt0002", true},
		{"  ", "", false},
		{"zeppelin", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			f, ok := c.FindByTitle(tt.title)
			if ok != tt.found || f.ID != tt.wantID {
				t.Errorf("FindByTitle(%q) = %q, %v; want %q, %v", tt.title, f.ID, ok, tt.wantID, tt.found)
			}
		})
	}
}

func TestDocuments(t *testing.T) {
	c, err := Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatal(err)
	}
	docs := c.Documents()
	if len(docs) != 3 {
		t.Fatalf("len = %d", len(docs))
	}
	if docs[0].ID != "tt0001" || docs[0].Body != "A robot falls in love." || !reflect.DeepEqual(docs[0].Tags, []string{"Animation", "Sci-Fi"}) {
		t.Errorf("docs[0] = %+v", docs[0])
	}
	if docs[2].ID != "tt0004" || docs[2].Body != "" {
		t.Errorf("docs[2] = %+v", docs[2])
	}
}

func TestParse_MissingSynopsis(t *testing.T) {
	input := header +
		`tt0010,Silent Reel,Silent Reel,0,1925,\N,\N,\N,\N` + "\n" +
		`tt0011,Loud Reel,Loud Reel,0,1930,70,Drama,6.1,A band plays on.` + "\n"
	c, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	silent, ok := c.Film("tt0010")
	if !ok {
		t.Fatal("tt0010 missing")
	}
	if silent.Synopsis != "" || silent.Genres != nil {
		t.Errorf("tt0010 = %+v, want empty synopsis and no genres", silent)
	}
	if body := c.Documents()[0].Body; body != "" {
		t.Errorf("document body = %q, want empty", body)
	}
}
