package domain

import (
	"errors"
	"testing"
)

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		raw     string
		want    Verdict
		wantErr bool
	}{
		{raw: "accept", want: VerdictAccept},
		{raw: " REJECT ", want: VerdictReject},
		{raw: "maybe", wantErr: true},
		{raw: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseVerdict(tt.raw)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidVerdict) {
				t.Errorf("ParseVerdict(%q): expected ErrInvalidVerdict, got %v", tt.raw, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseVerdict(%q) = %q, %v; want %q", tt.raw, got, err, tt.want)
		}
	}
}

func TestFeedbackPolicy_Adjust(t *testing.T) {
	policy := DefaultFeedbackPolicy()
	tests := []struct {
		name            string
		accepts, reject int
		wantDelta       float64
		wantExcluded    bool
	}{
		{name: "no feedback", wantDelta: 0},
		{name: "single accept", accepts: 1, wantDelta: 0.10},
		{name: "mixed", accepts: 2, reject: 1, wantDelta: 0.05},
		{name: "two rejects exclude", reject: 2, wantExcluded: true},
		{name: "accepts do not override exclusion", accepts: 5, reject: 2, wantExcluded: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := policy.Adjust(tt.accepts, tt.reject)
			if got.Excluded != tt.wantExcluded {
				t.Fatalf("excluded: got %v, want %v", got.Excluded, tt.wantExcluded)
			}
			if !tt.wantExcluded && !almostEqual(got.Delta, tt.wantDelta) {
				t.Fatalf("delta: got %v, want %v", got.Delta, tt.wantDelta)
			}
		})
	}
}

func TestOptional_JSON(t *testing.T) {
	b, err := Some(1998).MarshalJSON()
	if err != nil || string(b) != "1998" {
		t.Fatalf("marshal some: %s, %v", b, err)
	}
	b, err = None[int]().MarshalJSON()
	if err != nil || string(b) != "null" {
		t.Fatalf("marshal none: %s, %v", b, err)
	}

	var o Optional[int]
	if err := o.UnmarshalJSON([]byte("2004")); err != nil || !o.Valid || o.Value != 2004 {
		t.Fatalf("unmarshal value: %+v, %v", o, err)
	}
	if err := o.UnmarshalJSON([]byte("null")); err != nil || o.Valid {
		t.Fatalf("unmarshal null: %+v, %v", o, err)
	}
	if got := o.OrElse(7); got != 7 {
		t.Fatalf("OrElse: got %d, want 7", got)
	}
}

func TestCandidateArtist_AddSeed(t *testing.T) {
	var c CandidateArtist
	if !c.AddSeed("s1", "Seed One") {
		t.Fatalf("first seed should add support")
	}
	if c.AddSeed("s1", "Seed One") {
		t.Fatalf("repeat seed should not add support")
	}
	c.AddSeed("s2", "Seed Two")
	if c.SeedSupportCount() != 2 {
		t.Fatalf("support: got %d, want 2", c.SeedSupportCount())
	}
}
