// Package extractor scans free-form text for memory-worthy sentences,
// grounded on original_source/src/engram/extraction/{extractor,patterns}.py
// (itself ported from an earlier context_manager.py).
package extractor

import "regexp"

// typePatterns pairs a memory type with the regexes that flag a sentence
// as belonging to it, checked in this order so the first type to match a
// sentence wins — mirrors IMPORTANCE_PATTERNS's dict (insertion-ordered
// in Python 3.7+) iterated preference, decision, fact, error_fix, pattern.
var typePatterns = []struct {
	memType  string
	patterns []*regexp.Regexp
}{
	{"preference", compileAll(
		`(?i)(?:i |user )(?:prefer|like|want|always|never|hate)`,
		`(?i)(?:my |the )(?:style|preference|approach)`,
		`(?i)(?:don't|do not) (?:use|want|like)`,
	)},
	{"decision", compileAll(
		`(?i)(?:decided|choosing|going with|picked|selected)`,
		`(?i)(?:the plan is|we will|let's go with)`,
		`(?i)(?:agreed|confirmed|approved)`,
	)},
	{"fact", compileAll(
		`(?i)(?:the |this )(?:project|codebase|repo|app)`,
		`(?i)(?:uses|requires|depends on|built with)`,
		`(?i)(?:architecture|structure|pattern)`,
	)},
	{"error_fix", compileAll(
		`(?i)(?:fixed|solved|resolved) (?:by|with|using)`,
		`(?i)(?:the (?:bug|error|issue) was)`,
		`(?i)(?:solution|workaround|fix):?`,
	)},
	{"pattern", compileAll(
		`(?i)(?:always|never|must) (?:use|call|import)`,
		`(?i)(?:naming convention|code style)`,
		`(?i)(?:this function|this class|this module)`,
	)},
}

// typeWeights is the per-type importance floor, TYPE_WEIGHTS in the original.
var typeWeights = map[string]int{
	"preference": 8,
	"decision":   7,
	"error_fix":  7,
	"fact":       6,
	"pattern":    6,
	"summary":    5,
}

// highIndicators bump importance by 2 (once) when present in a sentence.
var highIndicators = []string{"always", "never", "must", "critical", "important", "key"}

// sentenceSplit mirrors re.split(r"[.!?\n]", text).
var sentenceSplit = regexp.MustCompile(`[.!?\n]`)

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}
