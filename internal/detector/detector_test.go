package detector

import (
	"math"
	"reflect"
	"testing"

	"github.com/citewatch-agent/internal/models"
)

func TestDetectDomainMatch(t *testing.T) {
	result := Detect("Visit acme.com for great shoes.", []string{"acme.com"}, nil, 0.5)

	if !result.Cited {
		t.Fatal("Expected cited=true")
	}
	if result.Position != models.PositionTop {
		t.Errorf("Expected position top, got %q", result.Position)
	}
	if math.Abs(result.Confidence-0.7) > 1e-9 {
		t.Errorf("Expected confidence 0.7, got %v", result.Confidence)
	}
	if !reflect.DeepEqual(result.MatchedTerms, []string{"acme.com"}) {
		t.Errorf("Expected matched terms [acme.com], got %v", result.MatchedTerms)
	}
}

func TestDetectNoMatch(t *testing.T) {
	result := Detect("No relevant brands mentioned here at all.", []string{"acme.com"}, []string{"Acme"}, 0.5)

	if result.Cited {
		t.Error("Expected cited=false")
	}
	if result.Position != "" {
		t.Errorf("Expected empty position, got %q", result.Position)
	}
	if result.Confidence != 0 {
		t.Errorf("Expected confidence 0, got %v", result.Confidence)
	}
	if len(result.MatchedTerms) != 0 {
		t.Errorf("Expected no matched terms, got %v", result.MatchedTerms)
	}
}

func TestDetectPositionBuckets(t *testing.T) {
	// 100-char padding strings place the term at a controlled offset
	pad := func(n int) string {
		b := make([]byte, n)
		for i := range b {
			b[i] = 'x'
		}
		return string(b)
	}

	tests := []struct {
		name string
		text string
		want models.CitationPosition
	}{
		{"start of text", "acme " + pad(95), models.PositionTop},
		{"middle of text", pad(45) + " acme " + pad(49), models.PositionMiddle},
		{"end of text", pad(90) + " acme", models.PositionBottom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Detect(tt.text, nil, []string{"acme"}, 0.5)
			if !result.Cited {
				t.Fatal("Expected cited=true")
			}
			if result.Position != tt.want {
				t.Errorf("Expected position %q, got %q", tt.want, result.Position)
			}
		})
	}
}

func TestDetectWordBoundaryKeywords(t *testing.T) {
	// "acmeify" must not match the whole-word keyword "acme"
	result := Detect("Try acmeify for everything.", nil, []string{"acme"}, 0.5)
	if result.Cited {
		t.Error("Expected no citation for partial word match")
	}

	// Domains match as substrings, including inside longer tokens
	result = Detect("See https://www.acme.com/pricing for details.", []string{"acme.com"}, nil, 0.5)
	if !result.Cited {
		t.Error("Expected domain substring match inside URL")
	}
}

func TestDetectDomainDotIsLiteral(t *testing.T) {
	// The dot must not act as a regex wildcard
	result := Detect("We compared acmeXcom with others.", []string{"acme.com"}, nil, 0.5)
	if result.Cited {
		t.Error("Expected no citation when dot does not match literally")
	}
}

func TestDetectCaseInsensitive(t *testing.T) {
	// Domain matches once; the whole-word keyword matches both ACME.COM's
	// label and the standalone Acme.
	result := Detect("ACME.COM is one option; Acme also makes tools.", []string{"acme.com"}, []string{"acme"}, 0.5)
	if !result.Cited {
		t.Fatal("Expected cited=true")
	}
	if result.MatchCount != 3 {
		t.Errorf("Expected 3 matches, got %d", result.MatchCount)
	}
	if !reflect.DeepEqual(result.MatchedTerms, []string{"acme.com", "acme"}) {
		t.Errorf("Expected each term reported once, got %v", result.MatchedTerms)
	}
}

func TestDetectConfidenceCapped(t *testing.T) {
	text := "acme acme acme acme acme acme acme acme"
	result := Detect(text, nil, []string{"acme"}, 0.6)

	if result.Confidence != 1.0 {
		t.Errorf("Expected confidence capped at 1.0, got %v", result.Confidence)
	}
	if len(result.MatchedTerms) != 1 {
		t.Errorf("Expected deduplicated matched terms, got %v", result.MatchedTerms)
	}
}

func TestDetectConfidenceMonotonic(t *testing.T) {
	prev := 0.0
	text := ""
	for i := 0; i < 5; i++ {
		text += "acme filler words here "
		result := Detect(text, nil, []string{"acme"}, 0.5)
		if result.Confidence < prev {
			t.Fatalf("Confidence decreased from %v to %v at %d matches", prev, result.Confidence, i+1)
		}
		if result.Confidence <= 0.5 {
			t.Errorf("Expected confidence above base floor, got %v", result.Confidence)
		}
		prev = result.Confidence
	}
}

func TestDetectDeterministic(t *testing.T) {
	text := "Acme and acme.com both appear, plus acme again."
	first := Detect(text, []string{"acme.com"}, []string{"acme"}, 0.55)
	for i := 0; i < 10; i++ {
		if got := Detect(text, []string{"acme.com"}, []string{"acme"}, 0.55); !reflect.DeepEqual(got, first) {
			t.Fatalf("Detection not deterministic: %+v vs %+v", got, first)
		}
	}
}

func TestDetectEmptyInputs(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		domains  []string
		keywords []string
	}{
		{"all empty", "", nil, nil},
		{"no terms", "some response text", nil, nil},
		{"empty strings in terms", "some response text", []string{""}, []string{""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Detect(tt.text, tt.domains, tt.keywords, 0.5)
			if result.Cited {
				t.Error("Expected cited=false")
			}
			if result.Confidence != 0 {
				t.Errorf("Expected confidence 0, got %v", result.Confidence)
			}
			if result.Position != "" {
				t.Errorf("Expected empty position, got %q", result.Position)
			}
		})
	}
}

func TestDetectPositionCitedCoupling(t *testing.T) {
	texts := []string{
		"acme is mentioned",
		"nothing relevant",
		"",
		"late mention of acme.com",
	}
	for _, text := range texts {
		result := Detect(text, []string{"acme.com"}, []string{"acme"}, 0.5)
		if result.Cited != (result.Position != "") {
			t.Errorf("Position/cited coupling violated for %q: cited=%v position=%q", text, result.Cited, result.Position)
		}
	}
}

func TestBrandKeywords(t *testing.T) {
	tests := []struct {
		domains []string
		want    []string
	}{
		{[]string{"acme.com"}, []string{"acme"}},
		{[]string{"shop.acme.co.uk"}, []string{"shop"}},
		{[]string{"localhost"}, []string{"localhost"}},
		{[]string{"acme.com", "", "widgets.io"}, []string{"acme", "widgets"}},
		{nil, []string{}},
	}

	for _, tt := range tests {
		if got := BrandKeywords(tt.domains); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("BrandKeywords(%v) = %v, want %v", tt.domains, got, tt.want)
		}
	}
}
