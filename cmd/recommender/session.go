package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/film-similarity/internal/recommender"
	apperrors "github.com/Adithya-Monish-Kumar-K/film-similarity/pkg/errors"
)

const (
	quitKey      = "q"
	sampleTitles = 10
)

// session is the line-oriented menu loop.
type session struct {
	svc *recommender.Service
	in  *bufio.Scanner
	out io.Writer
	k   int
}

func newSession(svc *recommender.Service, in io.Reader, out io.Writer, k int) *session {
	return &session{svc: svc, in: bufio.NewScanner(in), out: out, k: k}
}

// run serves menu choices until quit, end of input or ctx is done.
func (s *session) run(ctx context.Context) error {
	for ctx.Err() == nil {
		fmt.Fprintln(s.out, "\n=== Film Recommendation Options ===")
		fmt.Fprintln(s.out, "1. Films similar to a title")
		fmt.Fprintln(s.out, "2. Films matching a text prompt")
		fmt.Fprintln(s.out, "3. Films similar to several titles")
		fmt.Fprintf(s.out, "Enter '%s' to quit\n", quitKey)
		choice, ok := s.prompt("\nChoose an option: ")
		if !ok {
			return s.in.Err()
		}
		var err error
		switch strings.ToLower(choice) {
		case quitKey:
			fmt.Fprintln(s.out, "Goodbye.")
			return nil
		case "1":
			err = s.byTitle(ctx)
		case "2":
			err = s.byPrompt(ctx)
		case "3":
			err = s.bySet(ctx)
		default:
			fmt.Fprintln(s.out, "Invalid option. Please try again.")
		}
		if err != nil {
			return err
		}
	}
	return ctx.Err()
}

func (s *session) prompt(label string) (string, bool) {
	fmt.Fprint(s.out, label)
	if !s.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(s.in.Text()), true
}

func (s *session) byTitle(ctx context.Context) error {
	title, ok := s.prompt("\nEnter a film title: ")
	if !ok {
		return nil
	}
	film, err := s.svc.FindByTitle(title)
	if err != nil {
		s.notFound(err)
		return nil
	}
	info, err := s.svc.Film(film.ID)
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, "\nSelected film:")
	fmt.Fprintf(s.out, "Title:  %s\n", info.PrimaryTitle)
	fmt.Fprintf(s.out, "Year:   %s\n", year(info.StartYear))
	fmt.Fprintf(s.out, "Genres: %s\n", strings.Join(info.Genres, ", "))
	fmt.Fprintf(s.out, "Rating: %.1f\n", info.AverageRating)
	if len(info.TopTerms) > 0 {
		terms := make([]string, len(info.TopTerms))
		for i, e := range info.TopTerms {
			terms[i] = e.Term
		}
		fmt.Fprintf(s.out, "Key terms: %s\n", strings.Join(terms, ", "))
	}

	result, err := s.svc.SimilarTo(ctx, film.ID, s.k)
	if err != nil {
		return err
	}
	s.show(result, info.PrimaryTitle)
	return nil
}

func (s *session) byPrompt(ctx context.Context) error {
	fmt.Fprintln(s.out, "\nDescribe the kind of film you are looking for")
	text, ok := s.prompt(`(for example "a sci-fi adventure with robots and space travel"): `)
	if !ok {
		return nil
	}
	result, err := s.svc.Search(ctx, text, s.k)
	if err != nil {
		return err
	}
	s.show(result, fmt.Sprintf("your prompt %q", text))
	return nil
}

func (s *session) bySet(ctx context.Context) error {
	line, ok := s.prompt("\nEnter film titles separated by ';': ")
	if !ok {
		return nil
	}
	var ids, titles []string
	for _, title := range strings.Split(line, ";") {
		if strings.TrimSpace(title) == "" {
			continue
		}
		film, err := s.svc.FindByTitle(title)
		if err != nil {
			s.notFound(err)
			return nil
		}
		ids = append(ids, film.ID)
		titles = append(titles, film.PrimaryTitle)
	}
	if len(ids) == 0 {
		fmt.Fprintln(s.out, "No titles given.")
		return nil
	}
	result, err := s.svc.SimilarToSet(ctx, ids, s.k)
	if err != nil {
		return err
	}
	s.show(result, strings.Join(titles, ", "))
	return nil
}

func (s *session) notFound(err error) {
	if !errors.Is(err, apperrors.ErrDocumentNotFound) {
		fmt.Fprintf(s.out, "Invalid title: %v\n", err)
		return
	}
	fmt.Fprintln(s.out, "Film not found. Some available films:")
	films := s.svc.Catalog().Films()
	for i := 0; i < len(films) && i < sampleTitles; i++ {
		fmt.Fprintf(s.out, "- %s (%s)\n", films[i].PrimaryTitle, year(films[i].StartYear))
	}
}

func (s *session) show(result *recommender.Result, source string) {
	fmt.Fprintf(s.out, "\nTop %d films similar to %s:\n", result.K, source)
	fmt.Fprintln(s.out, strings.Repeat("-", 52))
	if len(result.Results) == 0 {
		fmt.Fprintln(s.out, "No similar films found.")
		return
	}
	for i, rec := range result.Results {
		fmt.Fprintf(s.out, "%d. %s (%s) - %.2f similarity\n", i+1, rec.Title, year(rec.Year), rec.Score)
		fmt.Fprintf(s.out, "   Genres: %s\n", strings.Join(rec.Genres, ", "))
		fmt.Fprintf(s.out, "   Rating: %.1f\n", rec.Rating)
	}
}

func year(y int) string {
	if y == 0 {
		return "unknown year"
	}
	return fmt.Sprint(y)
}
