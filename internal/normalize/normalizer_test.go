package normalize_test

import (
	"testing"

	"carecount/internal/catalog"
	"carecount/internal/extract"
	"carecount/internal/normalize"
)

func newNormalizer(t *testing.T) *normalize.Normalizer {
	t.Helper()
	cat, err := catalog.Load("")
	if err != nil {
		t.Fatalf("catalog.Load: %v", err)
	}
	return normalize.New(cat)
}

func TestNormalizeStripsBrandAndNoise(t *testing.T) {
	n := newNormalizer(t)
	candidate, ok := n.Normalize(extract.Result{
		Source:     extract.SourceOCR,
		Text:       "Kellogg's® Corn Flakes 500g Family Size",
		Confidence: 0.9,
	})
	if !ok {
		t.Fatal("expected a candidate")
	}
	if candidate.Name != "cereal" {
		t.Fatalf("name = %q, want cereal", candidate.Name)
	}
	if candidate.Confidence != 0.9 {
		t.Fatalf("confidence = %v, want passthrough 0.9 for exact hit", candidate.Confidence)
	}
	if candidate.Source != extract.SourceOCR {
		t.Fatalf("source = %s, want ocr", candidate.Source)
	}
}

func TestNormalizeCaptionPhrase(t *testing.T) {
	n := newNormalizer(t)
	candidate, ok := n.Normalize(extract.Result{
		Source:     extract.SourceVision,
		Text:       "a jar of peanut butter on a shelf",
		Confidence: 0.6,
	})
	if !ok || candidate.Name != "peanut butter" {
		t.Fatalf("candidate = %+v, %v, want peanut butter", candidate, ok)
	}
	if candidate.Confidence != 0.6 {
		t.Fatalf("confidence = %v, want 0.6 (embedded catalog name is exact)", candidate.Confidence)
	}
}

func TestNormalizeFuzzyPenalty(t *testing.T) {
	n := newNormalizer(t)
	candidate, ok := n.Normalize(extract.Result{
		Source:     extract.SourceOCR,
		Text:       "shampo",
		Confidence: 0.8,
	})
	if !ok || candidate.Name != "shampoo" {
		t.Fatalf("candidate = %+v, %v, want shampoo", candidate, ok)
	}
	want := 0.8 * 0.9
	if candidate.Confidence != want {
		t.Fatalf("confidence = %v, want %v (fuzzy penalty applied)", candidate.Confidence, want)
	}
}

func TestNormalizeUncatalogedTitleCased(t *testing.T) {
	n := newNormalizer(t)
	candidate, ok := n.Normalize(extract.Result{
		Source:     extract.SourceVision,
		Text:       "wooden giraffe figurine",
		Confidence: 0.7,
	})
	if !ok {
		t.Fatal("expected a candidate")
	}
	if candidate.Name != "Wooden Giraffe Figurine" {
		t.Fatalf("name = %q, want title-cased passthrough", candidate.Name)
	}
}

func TestNormalizeRejectsNonAlphabetic(t *testing.T) {
	n := newNormalizer(t)
	for _, text := range []string{"", "500ml 12x 2%", "®™", "  "} {
		if candidate, ok := n.Normalize(extract.Result{Source: extract.SourceOCR, Text: text, Confidence: 0.9}); ok {
			t.Errorf("Normalize(%q) = %+v, want none", text, candidate)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	n := newNormalizer(t)
	res := extract.Result{Source: extract.SourceOCR, Text: "Heinz Baked Beans 415g", Confidence: 0.82}
	first, ok1 := n.Normalize(res)
	second, ok2 := n.Normalize(res)
	if !ok1 || !ok2 || first != second {
		t.Fatalf("normalization not idempotent: %+v vs %+v", first, second)
	}
	if first.Name != "beans" {
		t.Fatalf("name = %q, want beans", first.Name)
	}
}
