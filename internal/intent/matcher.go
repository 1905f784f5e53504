package intent

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	// KeywordSlot is the entity name whose value ExtractKeyword returns.
	KeywordSlot = "keyword"

	// DefaultThreshold is the minimum confidence for an utterance to count as a match.
	DefaultThreshold = 0.75
)

var slotPattern = regexp.MustCompile(`^\{([a-z_][a-z0-9_]*)\}$`)

// Match is the best template hit for an utterance.
type Match struct {
	Template   string
	Entities   map[string]string
	Confidence float64
}

func (m *Match) Keyword() string {
	if m == nil {
		return ""
	}
	return m.Entities[KeywordSlot]
}

type template struct {
	source   string
	re       *regexp.Regexp
	literals int
	slots    []string
}

// Matcher is immutable once built and safe for concurrent use.
type Matcher struct {
	templates []*template
}

// NewMatcher compiles samples into a matcher. Samples that yield no tokens are skipped.
func NewMatcher(samples []string) *Matcher {
	m := &Matcher{}
	for _, s := range samples {
		if t := compileTemplate(s); t != nil {
			m.templates = append(m.templates, t)
		}
	}
	return m
}

func (m *Matcher) Len() int {
	return len(m.templates)
}

// Match scores every template and returns the best one. An utterance fully
// covered by a template scores 1.0; extra words around it lower the score
// towards 0.5.
func (m *Matcher) Match(utterance string) (*Match, bool) {
	norm := Normalize(utterance)
	total := len(strings.Fields(norm))
	if total == 0 {
		return nil, false
	}

	var best *Match
	var bestLiterals int
	for _, t := range m.templates {
		sub := t.re.FindStringSubmatch(norm)
		if sub == nil {
			continue
		}

		filler := 0
		entities := make(map[string]string, len(t.slots))
		for i, name := range t.re.SubexpNames() {
			switch name {
			case "":
			case "pre", "post":
				filler += len(strings.Fields(sub[i]))
			default:
				entities[name] = strings.TrimSpace(sub[i])
			}
		}

		conf := 0.5 + 0.5*float64(total-filler)/float64(total)
		if best == nil || conf > best.Confidence || (conf == best.Confidence && t.literals > bestLiterals) {
			best = &Match{Template: t.source, Entities: entities, Confidence: conf}
			bestLiterals = t.literals
		}
	}

	return best, best != nil
}

func compileTemplate(sample string) *template {
	tokens := strings.Fields(Normalize(sample))
	if len(tokens) == 0 {
		return nil
	}

	t := &template{source: sample}
	parts := make([]string, 0, len(tokens))
	seen := make(map[string]bool)
	for i, tok := range tokens {
		if sm := slotPattern.FindStringSubmatch(tok); sm != nil && !seen[sm[1]] && sm[1] != "pre" && sm[1] != "post" {
			name := sm[1]
			seen[name] = true
			t.slots = append(t.slots, name)
			if i == len(tokens)-1 {
				parts = append(parts, `(?P<`+name+`>.+)`)
			} else {
				parts = append(parts, `(?P<`+name+`>.+?)`)
			}
			continue
		}
		t.literals++
		parts = append(parts, regexp.QuoteMeta(tok))
	}

	expr := `^(?P<pre>.*?\s)??` + strings.Join(parts, `\s+`) + `(?P<post>\s.*)?$`
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil
	}
	t.re = re
	return t
}

// Normalize lowercases text, turns punctuation into spaces and collapses
// whitespace. Apostrophes, hyphens and slot braces survive.
func Normalize(s string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r == '\'' || r == '-' || r == '{' || r == '}' || r == '_':
			return unicode.ToLower(r)
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			return ' '
		default:
			return unicode.ToLower(r)
		}
	}, s)
	return strings.Join(strings.Fields(mapped), " ")
}
