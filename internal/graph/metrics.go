package graph

import (
	"math"
	"strings"
	"time"
)

// ReverseStrengthFactor scales the mirrored reverse of a caller-supplied
// branch cross-reference.
const ReverseStrengthFactor = 0.8

// BranchMetrics derives a branch's priority and confidence from its state:
//
//	priority = avgConfidence + 0.1*sum(insight applicability)
//	         + 0.1*sum(cross-ref strength) + recency + 0.05*|unique key points|
//
// recency decays linearly from 1 to 0 over the hour after the last thought.
func BranchMetrics(b *Branch, now time.Time) (priority, confidence float64) {
	var sumConf float64
	var last time.Time
	unique := make(map[string]struct{})
	for _, t := range b.Thoughts {
		sumConf += t.Metadata.Confidence
		if t.Timestamp.After(last) {
			last = t.Timestamp
		}
		for _, kp := range t.Metadata.KeyPoints {
			unique[normalizeKeyPoint(kp)] = struct{}{}
		}
	}
	if len(b.Thoughts) > 0 {
		confidence = sumConf / float64(len(b.Thoughts))
	}

	var sumApplicability float64
	for _, in := range b.Insights {
		sumApplicability += in.ApplicabilityScore
	}
	var sumStrength float64
	for _, x := range b.CrossRefs {
		sumStrength += x.Strength
	}

	var recency float64
	if !last.IsZero() {
		recency = math.Max(0, 1-now.Sub(last).Hours())
	}

	priority = confidence + 0.1*sumApplicability + 0.1*sumStrength + recency + 0.05*float64(len(unique))
	return priority, confidence
}

func normalizeKeyPoint(kp string) string {
	return strings.ToLower(strings.TrimSpace(kp))
}
