package model

import (
	"math"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/film-similarity/internal/similarity/store"
)

const eps = 1e-12

func buildModel(t *testing.T, docs []store.Document) *Model {
	t.Helper()
	s, err := store.Build(docs)
	if err != nil {
		t.Fatalf("store.Build() error = %v", err)
	}
	return Build(s)
}

func filmDocs() []store.Document {
	return []store.Document{
		{ID: "A", Body: "a robot falls in love"},
		{ID: "B", Body: "a love story in paris"},
		{ID: "C", Body: "robots and love in space"},
		{ID: "D", Body: "a robot robot uprising"},
		{ID: "E"},
	}
}

func TestBuild_Weights(t *testing.T) {
	m := buildModel(t, filmDocs())
	ordD, _ := m.Store().Lookup("D")

	want := 2 * math.Log10(5.0/2.0)
	if got := m.Weights(ordD).Weight("robot"); math.Abs(got-want) > eps {
		t.Errorf("weight(D, robot) = %v, want %v", got, want)
	}
	if got := m.Weights(ordD).Weight("paris"); got != 0 {
		t.Errorf("weight(D, paris) = %v, want 0", got)
	}
	for ord := 0; ord < m.Store().Len(); ord++ {
		var sum float64
		for _, e := range m.Weights(ord).Entries() {
			if e.Weight <= 0 {
				t.Errorf("doc %d term %q has non-positive weight %v", ord, e.Term, e.Weight)
			}
			sum += e.Weight * e.Weight
		}
		if got := m.Magnitude(ord); math.Abs(got-math.Sqrt(sum)) > eps {
			t.Errorf("Magnitude(%d) = %v, want %v", ord, got, math.Sqrt(sum))
		}
	}
}

func TestBuild_TermInEveryDocumentIsDropped(t *testing.T) {
	m := buildModel(t, []store.Document{
		{ID: "1", Body: "space opera"},
		{ID: "2", Body: "space western"},
	})
	for ord := 0; ord < 2; ord++ {
		if w := m.Weights(ord).Weight("space"); w != 0 {
			t.Errorf("doc %d weight(space) = %v, want 0", ord, w)
		}
	}
	if got := m.CosineSimilarity(0, 1); got != 0 {
		t.Errorf("CosineSimilarity = %v, want 0", got)
	}
}

func TestCosineSimilarity_Properties(t *testing.T) {
	m := buildModel(t, filmDocs())
	n := m.Store().Len()
	for a := 0; a < n; a++ {
		if m.Magnitude(a) > 0 {
			if got := m.CosineSimilarity(a, a); got != 1 {
				t.Errorf("CosineSimilarity(%d, %d) = %v, want 1", a, a, got)
			}
		}
		for b := 0; b < n; b++ {
			ab := m.CosineSimilarity(a, b)
			ba := m.CosineSimilarity(b, a)
			if ab != ba {
				t.Errorf("CosineSimilarity(%d,%d) = %v but (%d,%d) = %v", a, b, ab, b, a, ba)
			}
			if ab < 0 || ab > 1 || math.IsNaN(ab) {
				t.Errorf("CosineSimilarity(%d,%d) = %v out of [0,1]", a, b, ab)
			}
		}
	}
}

func TestCosineSimilarity_ZeroMagnitude(t *testing.T) {
	m := buildModel(t, filmDocs())
	ordE, _ := m.Store().Lookup("E")
	ordA, _ := m.Store().Lookup("A")
	if m.Magnitude(ordE) != 0 {
		t.Fatalf("Magnitude(E) = %v, want 0", m.Magnitude(ordE))
	}
	if got := m.CosineSimilarity(ordA, ordE); got != 0 {
		t.Errorf("CosineSimilarity(A, E) = %v, want 0", got)
	}
	if got := m.CosineSimilarity(ordE, ordE); got != 0 {
		t.Errorf("CosineSimilarity(E, E) = %v, want 0", got)
	}
}

func TestCosineSimilarity_SharedTermsRankHigher(t *testing.T) {
	m := buildModel(t, filmDocs())
	a, _ := m.Store().Lookup("A")
	b, _ := m.Store().Lookup("B")
	d, _ := m.Store().Lookup("D")
	if ad, ab := m.CosineSimilarity(a, d), m.CosineSimilarity(a, b); ad <= ab {
		t.Errorf("cos(A,D) = %v should exceed cos(A,B) = %v", ad, ab)
	}
}

func TestVectorizeQuery(t *testing.T) {
	m := buildModel(t, filmDocs())
	before := m.Store().DocumentFrequency("robot")

	q := m.VectorizeQuery("Robot robot in a galaxy far away")
	if got, want := q.Vector.Weight("robot"), 2*m.IDF("robot"); math.Abs(got-want) > eps {
		t.Errorf("query weight(robot) = %v, want %v", got, want)
	}
	if w := q.Vector.Weight("galaxy"); w != 0 {
		t.Errorf("query weight(galaxy) = %v, want 0 for unseen term", w)
	}
	if after := m.Store().DocumentFrequency("robot"); after != before {
		t.Errorf("DocumentFrequency(robot) changed from %d to %d", before, after)
	}
	if _, ok := m.Store().Lookup(q.Text); ok {
		t.Error("query text became a corpus member")
	}

	candidates := m.Candidates(q)
	for ord := 0; ord < m.Store().Len(); ord++ {
		sim := m.CosineQuery(q, ord)
		if !candidates.Contains(uint32(ord)) && sim != 0 {
			t.Errorf("doc %d is not a candidate but scores %v", ord, sim)
		}
		if sim < 0 || sim > 1 {
			t.Errorf("CosineQuery(%d) = %v out of [0,1]", ord, sim)
		}
	}
}

func TestVectorizeQuery_UnknownTermsOnly(t *testing.T) {
	m := buildModel(t, filmDocs())
	q := m.VectorizeQuery("zeppelin xylophone")
	if q.Vector.Len() != 0 || q.Vector.Magnitude() != 0 {
		t.Fatalf("query vector = %+v, want empty", q.Vector.Entries())
	}
	if n := m.Candidates(q).GetCardinality(); n != 0 {
		t.Errorf("Candidates cardinality = %d, want 0", n)
	}
	if got := m.CosineQuery(q, 0); got != 0 {
		t.Errorf("CosineQuery = %v, want 0", got)
	}
}

func TestTopTerms(t *testing.T) {
	m := buildModel(t, filmDocs())
	d, _ := m.Store().Lookup("D")
	top := m.TopTerms(d, 1)
	if len(top) != 1 || top[0].Term != "robot" {
		t.Errorf("TopTerms(D, 1) = %v, want [robot]", top)
	}
}

func TestDot_Symmetric(t *testing.T) {
	a := newVector(map[string]float64{"x": 0.1, "y": 0.2, "z": 0.3})
	b := newVector(map[string]float64{"y": 0.7, "z": 0.11})
	if Dot(a, b) != Dot(b, a) {
		t.Errorf("Dot(a,b) = %v, Dot(b,a) = %v", Dot(a, b), Dot(b, a))
	}
	if got := newVector(map[string]float64{"x": 0, "y": -1}).Len(); got != 0 {
		t.Errorf("non-positive weights kept: Len() = %d", got)
	}
}
