// Package intent decides whether an utterance is a drawing request and pulls
// the subject phrase out of it, using per-language phrase templates.
package intent

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

type Extractor struct {
	mu        sync.RWMutex
	matchers  map[string]*Matcher
	threshold float64
	log       logrus.FieldLogger
}

type Option func(*Extractor)

func WithThreshold(threshold float64) Option {
	return func(e *Extractor) {
		if threshold > 0 && threshold < 1 {
			e.threshold = threshold
		}
	}
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Extractor) {
		if log != nil {
			e.log = log
		}
	}
}

func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		matchers:  make(map[string]*Matcher),
		threshold: DefaultThreshold,
		log:       logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BaseLang returns the language part of a locale tag: "en-US" -> "en".
func BaseLang(locale string) string {
	lang, _, _ := strings.Cut(locale, "-")
	lang, _, _ = strings.Cut(lang, "_")
	return strings.ToLower(strings.TrimSpace(lang))
}

// RegisterPatterns builds the matcher for the base language of locale,
// replacing any previous one.
func (e *Extractor) RegisterPatterns(samples []string, locale string) {
	lang := BaseLang(locale)
	m := NewMatcher(samples)

	e.mu.Lock()
	e.matchers[lang] = m
	e.mu.Unlock()

	e.log.WithFields(logrus.Fields{"lang": lang, "templates": m.Len()}).Debug("registered keyword templates")
}

// ExtractKeyword returns the keyword of the best matching template, or false
// when no matcher exists for the locale or the match does not exceed the
// threshold.
func (e *Extractor) ExtractKeyword(utterance, locale string) (string, bool) {
	match, ok := e.Match(utterance, locale)
	if !ok {
		return "", false
	}
	kw := match.Keyword()
	if kw == "" {
		return "", false
	}
	e.log.WithFields(logrus.Fields{
		"keyword":    kw,
		"confidence": match.Confidence,
	}).Debug("extracted keyword")
	return kw, true
}

// Match returns the best template hit scoring above the threshold.
func (e *Extractor) Match(utterance, locale string) (*Match, bool) {
	lang := BaseLang(locale)

	e.mu.RLock()
	m, ok := e.matchers[lang]
	e.mu.RUnlock()
	if !ok {
		return nil, false
	}

	match, ok := m.Match(utterance)
	if !ok || match.Confidence <= e.threshold {
		e.log.WithField("lang", lang).Debugf("could not extract keyword from %q", utterance)
		return nil, false
	}
	return match, true
}

func (e *Extractor) Threshold() float64 {
	return e.threshold
}

func (e *Extractor) Languages() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	langs := make([]string, 0, len(e.matchers))
	for lang := range e.matchers {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// ParseTemplates reads newline-delimited templates. Blank lines and lines
// starting with '#' are skipped; lines with '(' are bracket-expanded.
func ParseTemplates(r io.Reader) ([]string, error) {
	var samples []string
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.Contains(line, "(") {
			samples = append(samples, ExpandParentheses(line)...)
		} else {
			samples = append(samples, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read templates: %w", err)
	}
	return samples, nil
}
