package extractor

import (
	"strings"

	"github.com/engram-memory/engram/internal/model"
)

// Candidate is one extracted memory, not yet stored. Project is
// carried through unvalidated — the caller decides which namespace to
// store it under.
type Candidate struct {
	Type       model.MemoryType
	Content    string
	Importance int
	Project    string
}

// Extract scans text for memory-worthy sentences, returning one
// Candidate per sentence that matches a type pattern (at most one match
// per sentence, first type wins), grounded on ContextExtractor.extract.
func Extract(text string, project string) []Candidate {
	var out []Candidate

	for _, raw := range sentenceSplit.Split(text, -1) {
		sentence := strings.TrimSpace(raw)
		if len(sentence) < 10 {
			continue
		}

		for _, tp := range typePatterns {
			matched := false
			for _, re := range tp.patterns {
				if re.MatchString(sentence) {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
			out = append(out, Candidate{
				Type:       model.MemoryType(tp.memType),
				Content:    sentence,
				Importance: calculateImportance(sentence, tp.memType),
				Project:    project,
			})
			break
		}
	}

	return out
}

// calculateImportance mirrors ContextExtractor._calculate_importance:
// base 5, +2 once if a high-signal word is present, floored at the
// type's weight, capped at 10.
func calculateImportance(text, memType string) int {
	importance := 5
	lower := strings.ToLower(text)
	for _, indicator := range highIndicators {
		if strings.Contains(lower, indicator) {
			importance += 2
			break
		}
	}
	if w, ok := typeWeights[memType]; ok && w > importance {
		importance = w
	}
	if importance > 10 {
		importance = 10
	}
	return importance
}
