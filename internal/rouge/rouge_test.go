package rouge

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/starford/notecheck/internal/apperr"
)

func TestTokenize(t *testing.T) {
	got := Tokenize("Patient: 45-year-old MALE, c/o chest pain.")
	want := []string{"patient", "45", "year", "old", "male", "c", "o", "chest", "pain"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Tokenize mismatch (-want +got):\n%s", diff)
	}
}

func TestScoreIdentical(t *testing.T) {
	rec, err := Score("the cat sat on the mat", "the cat sat on the mat")
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	one := Triple{P: 1, R: 1, F: 1}
	if diff := cmp.Diff(Record{Rouge1: one, Rouge2: one, RougeL: one}, rec); diff != "" {
		t.Errorf("identical texts (-want +got):\n%s", diff)
	}
}

func TestScorePartial(t *testing.T) {
	// candidate: the cat was found under the bed (7 tokens)
	// reference: the cat was under the bed (6 tokens)
	rec, err := Score("the cat was found under the bed", "the cat was under the bed")
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	want := Record{
		Rouge1: Triple{P: 6.0 / 7, R: 1, F: 2 * (6.0 / 7) / (6.0/7 + 1)},
		Rouge2: Triple{P: 4.0 / 6, R: 4.0 / 5, F: 2 * (4.0 / 6) * (4.0 / 5) / (4.0/6 + 4.0/5)},
		RougeL: Triple{P: 6.0 / 7, R: 1, F: 2 * (6.0 / 7) / (6.0/7 + 1)},
	}
	if diff := cmp.Diff(want, rec, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("Score mismatch (-want +got):\n%s", diff)
	}
	for _, typ := range Types {
		tr, ok := rec.Get(typ)
		if !ok {
			t.Fatalf("Get(%s) missing", typ)
		}
		for _, v := range []float64{tr.P, tr.R, tr.F} {
			if v < 0 || v > 1 || math.IsNaN(v) {
				t.Errorf("%s component %v out of range", typ, v)
			}
		}
	}
}

func TestScoreEmpty(t *testing.T) {
	if _, err := Score("", "reference"); !errors.Is(err, ErrEmptyText) {
		t.Errorf("empty candidate error = %v", err)
	}
	if _, err := Score("candidate", "..."); !errors.Is(err, apperr.ErrContentMismatch) {
		t.Errorf("punctuation-only reference error = %v", err)
	}
}

func TestAverage(t *testing.T) {
	a := Record{Rouge1: Triple{P: 0.2, R: 0.4, F: 0.6}}
	b := Record{Rouge1: Triple{P: 0.4, R: 0.6, F: 0.8}}
	got := Average([]Record{a, b})
	want := Record{Rouge1: Triple{P: 0.3, R: 0.5, F: 0.7}}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("Average mismatch (-want +got):\n%s", diff)
	}
	if (Average(nil) != Record{}) {
		t.Error("Average(nil) should be zero")
	}
}
