package graph

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// recurringKeyPointThreshold is the occurrence count at which a key point
// is reported as a recurring pattern.
const recurringKeyPointThreshold = 2

var positiveTerms = map[string]bool{
	"good": true, "great": true, "success": true, "successful": true, "works": true,
	"improved": true, "better": true, "solved": true, "benefit": true, "effective": true,
	"promising": true, "clear": true,
}

var negativeTerms = map[string]bool{
	"bad": true, "fail": true, "failed": true, "failure": true, "bug": true, "broken": true,
	"error": true, "issue": true, "problem": true, "worse": true, "risk": true, "blocked": true,
}

// observationInsight summarizes a new thought's key points, or returns nil
// when it has none.
func observationInsight(t *Thought, now time.Time) *Insight {
	if len(t.Metadata.KeyPoints) == 0 {
		return nil
	}
	return &Insight{
		ID:                 newID("insight"),
		Type:               InsightObservation,
		Content:            "Key points: " + strings.Join(t.Metadata.KeyPoints, ", "),
		Context:            []string{t.Metadata.Type},
		ApplicabilityScore: t.Metadata.Confidence,
		CreatedAt:          now,
	}
}

// advancedInsights runs after t has been appended to b: it reports key
// points that just became recurring and tallies coarse sentiment when t
// carries any sentiment terms.
func advancedInsights(b *Branch, t *Thought, parent string, now time.Time) []*Insight {
	var parents []string
	if parent != "" {
		parents = []string{parent}
	}

	var out []*Insight
	counts := make(map[string]int)
	for _, other := range b.Thoughts {
		seen := make(map[string]bool)
		for _, kp := range other.Metadata.KeyPoints {
			n := normalizeKeyPoint(kp)
			if !seen[n] {
				seen[n] = true
				counts[n]++
			}
		}
	}
	reported := make(map[string]bool)
	for _, kp := range t.Metadata.KeyPoints {
		n := normalizeKeyPoint(kp)
		if reported[n] || counts[n] != recurringKeyPointThreshold {
			continue
		}
		reported[n] = true
		out = append(out, &Insight{
			ID:                 newID("insight"),
			Type:               InsightBehavioralPattern,
			Content:            fmt.Sprintf("Recurring key point %q appears in %d thoughts", kp, counts[n]),
			Context:            []string{b.ID, kp},
			ParentInsights:     parents,
			ApplicabilityScore: 0.6,
			CreatedAt:          now,
		})
	}

	pos, neg := sentiment(t.Content)
	if pos+neg == 0 {
		return out
	}
	var totalPos, totalNeg int
	for _, other := range b.Thoughts {
		p, n := sentiment(other.Content)
		totalPos += p
		totalNeg += n
	}
	lean := "neutral"
	switch {
	case totalPos > totalNeg:
		lean = "positive"
	case totalNeg > totalPos:
		lean = "negative"
	}
	out = append(out, &Insight{
		ID:                 newID("insight"),
		Type:               InsightObservation,
		Content:            fmt.Sprintf("Sentiment tally: %d positive, %d negative (leaning %s)", totalPos, totalNeg, lean),
		Context:            []string{b.ID, "sentiment"},
		ParentInsights:     parents,
		ApplicabilityScore: 0.3,
		CreatedAt:          now,
	})
	return out
}

// sentiment counts positive and negative terms in text.
func sentiment(text string) (pos, neg int) {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, w := range words {
		if positiveTerms[w] {
			pos++
		}
		if negativeTerms[w] {
			neg++
		}
	}
	return pos, neg
}
