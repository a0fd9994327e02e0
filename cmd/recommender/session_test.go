package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/film-similarity/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/internal/recommender"
	"github.com/Adithya-Monish-Kumar-K/film-similarity/internal/similarity/ranker"
)

const films = `tconst,primaryTitle,originalTitle,isAdult,startYear,runtimeMinutes,genres,averageRating,synopsis
tt01,Robot Dreams,Robot Dreams,0,2023,102,"Sci-Fi,Animation",7.6,A lonely robot builds a friend in the city.
tt02,Steel Hearts,Steel Hearts,0,\N,95,"Sci-Fi,Action",6.1,A robot soldier fights for the city.
tt03,Ocean Letters,Ocean Letters,0,2001,110,"Romance,Drama",7.0,Two lovers write letters across the ocean.
`

func runSession(t *testing.T, input string) string {
	t.Helper()
	catalog, err := corpus.Parse(strings.NewReader(films))
	if err != nil {
		t.Fatal(err)
	}
	svc, err := recommender.Build(catalog, ranker.DefaultConfig(), recommender.Options{})
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	if err := newSession(svc, strings.NewReader(input), &out, 2).run(context.Background()); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	return out.String()
}

func TestSession(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "by title",
			input: "1\nrobot dreams\nq\n",
			want:  []string{"Title:  Robot Dreams", "Key terms:", "1. Steel Hearts (unknown year)", "Goodbye."},
		},
		{
			name:  "unknown title lists samples",
			input: "1\nCasablanca\nq\n",
			want:  []string{"Film not found", "- Ocean Letters (2001)"},
		},
		{
			name:  "prompt",
			input: "2\nletters across the ocean\n",
			want:  []string{`your prompt "letters across the ocean"`, "1. Ocean Letters (2001)"},
		},
		{
			name:  "several titles",
			input: "3\nRobot Dreams; Steel\nq\n",
			want:  []string{"similar to Robot Dreams, Steel Hearts", "1. Ocean Letters"},
		},
		{
			name:  "invalid option",
			input: "7\nQ\n",
			want:  []string{"Invalid option", "Goodbye."},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := runSession(t, tt.input)
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
		})
	}
}
