package agent

import (
	"strings"
	"unicode"
)

// Intent is how a question is handled.
type Intent int

const (
	// IntentAnalyst generates and runs SQL.
	IntentAnalyst Intent = iota
	// IntentSearch ranks runbook documents.
	IntentSearch
	// IntentComposite runs a canned device query and pairs it with repair guidance.
	IntentComposite
)

func (i Intent) String() string {
	switch i {
	case IntentSearch:
		return "search"
	case IntentComposite:
		return "composite"
	default:
		return "analyst"
	}
}

// Label is the user-facing mode name.
func (i Intent) Label() string {
	switch i {
	case IntentSearch:
		return "Documentation Search"
	case IntentComposite:
		return "Composite Query"
	default:
		return "Data Analysis"
	}
}

var (
	// searchStems match any word starting with them ("fix", "fixing", "repairs").
	searchStems = []string{"fix", "repair", "troubleshoot", "procedure"}
	// searchPhrases match consecutive words.
	searchPhrases = [][]string{{"how", "to"}}

	compositeVerbs = map[string]bool{"find": true, "show": true, "list": true}
)

// Classify picks the handling mode of a question. Precedence:
//
//  1. search: a repair or documentation word ("fix", "repair", "how to", ...)
//  2. composite: a find/show/list verb together with the word "and"
//  3. analyst: everything else
//
// Matching is on whole words, case-insensitive.
func Classify(question string) Intent {
	words := tokenize(question)

	for i, w := range words {
		for _, stem := range searchStems {
			if strings.HasPrefix(w, stem) {
				return IntentSearch
			}
		}
		for _, phrase := range searchPhrases {
			if matchesAt(words, i, phrase) {
				return IntentSearch
			}
		}
	}

	hasVerb, hasAnd := false, false
	for _, w := range words {
		if compositeVerbs[w] {
			hasVerb = true
		}
		if w == "and" {
			hasAnd = true
		}
	}
	if hasVerb && hasAnd {
		return IntentComposite
	}
	return IntentAnalyst
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func matchesAt(words []string, i int, phrase []string) bool {
	if i+len(phrase) > len(words) {
		return false
	}
	for j, p := range phrase {
		if words[i+j] != p {
			return false
		}
	}
	return true
}
