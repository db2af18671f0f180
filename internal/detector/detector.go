// Package detector decides whether a brand is cited inside an AI engine's
// response text. It is a pure function over its inputs and performs no I/O.
package detector

import (
	"regexp"
	"strings"

	"github.com/citewatch-agent/internal/models"
)

// Position classification thresholds as a fraction of response length
const (
	topThreshold    = 0.33
	middleThreshold = 0.66
)

// Confidence added per matched occurrence, on top of the engine's base rate
const confidencePerMatch = 0.2

// Result is the outcome of running detection over one response
type Result struct {
	Cited        bool                    `json:"cited"`
	Position     models.CitationPosition `json:"position,omitempty"`
	Confidence   float64                 `json:"confidence"`
	MatchCount   int                     `json:"match_count"`
	MatchedTerms []string                `json:"matched_terms"`
}

// Detect scans responseText for the given domains (literal substring match,
// dot escaped) and brand keywords (whole-word match), both case-insensitive.
// baseConfidence is the calling engine's calibrated trust floor. Empty domain
// and keyword sets are treated as vacuously not cited.
func Detect(responseText string, domains, brandKeywords []string, baseConfidence float64) Result {
	result := Result{MatchedTerms: []string{}}
	if responseText == "" {
		return result
	}

	lowered := strings.ToLower(responseText)

	totalMatches := 0
	firstOffset := -1
	seen := make(map[string]bool)

	record := func(term string, pattern *regexp.Regexp) {
		matches := pattern.FindAllStringIndex(lowered, -1)
		if len(matches) == 0 {
			return
		}
		totalMatches += len(matches)
		if firstOffset == -1 || matches[0][0] < firstOffset {
			firstOffset = matches[0][0]
		}
		key := strings.ToLower(term)
		if !seen[key] {
			seen[key] = true
			result.MatchedTerms = append(result.MatchedTerms, term)
		}
	}

	for _, domain := range domains {
		if domain == "" {
			continue
		}
		// Literal match anywhere in the text; "acme.com" may sit inside a URL
		pattern, err := regexp.Compile(regexp.QuoteMeta(strings.ToLower(domain)))
		if err != nil {
			continue
		}
		record(domain, pattern)
	}

	for _, keyword := range brandKeywords {
		if keyword == "" {
			continue
		}
		pattern, err := regexp.Compile(`\b` + regexp.QuoteMeta(strings.ToLower(keyword)) + `\b`)
		if err != nil {
			continue
		}
		record(keyword, pattern)
	}

	if totalMatches == 0 {
		return result
	}

	result.Cited = true
	result.MatchCount = totalMatches
	result.Position = classifyPosition(firstOffset, len(responseText))

	confidence := baseConfidence + float64(totalMatches)*confidencePerMatch
	if confidence > 1.0 {
		confidence = 1.0
	}
	result.Confidence = confidence

	return result
}

// classifyPosition buckets the earliest match offset by its normalized
// position within the response.
func classifyPosition(offset, length int) models.CitationPosition {
	if length == 0 {
		return models.PositionTop
	}
	ratio := float64(offset) / float64(length)
	switch {
	case ratio < topThreshold:
		return models.PositionTop
	case ratio < middleThreshold:
		return models.PositionMiddle
	default:
		return models.PositionBottom
	}
}

// BrandKeywords derives one keyword per domain: the label before the first
// dot, or the whole domain when there is no dot.
func BrandKeywords(domains []string) []string {
	keywords := make([]string, 0, len(domains))
	for _, domain := range domains {
		if domain == "" {
			continue
		}
		if idx := strings.Index(domain, "."); idx >= 0 {
			keywords = append(keywords, domain[:idx])
		} else {
			keywords = append(keywords, domain)
		}
	}
	return keywords
}
