package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/film-similarity/pkg/resilience"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantPermanent bool
	}{
		{"nil", nil, false},
		{"connection refused", errors.New("dial tcp: connection refused"), false},
		{"bad password", &pq.Error{Code: "28P01"}, true},
		{"missing database", fmt.Errorf("ping: %w", &pq.Error{Code: "3D000"}), true},
		{"starting up", &pq.Error{Code: "57P03"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			if resilience.IsPermanent(got) != tt.wantPermanent {
				t.Errorf("classify(%v) permanent = %v, want %v", tt.err, !tt.wantPermanent, tt.wantPermanent)
			}
			if tt.err != nil && !errors.Is(got, tt.err) {
				t.Errorf("classify(%v) lost the cause", tt.err)
			}
		})
	}
}
