// Package locale ships the phrase templates and spoken dialogs for every
// supported language.
package locale

import (
	"bufio"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"math/rand/v2"
	"path"
	"sort"
	"strings"

	"github.com/manash/stability-skill/internal/intent"
)

//go:embed data
var embedded embed.FS

const (
	QueryIntent     = "query.intent"
	StabilityIntent = "stability_ai.intent"

	DialogAsking = "asking"
	DialogDone   = "done"
	DialogNone   = "none"
	DialogError  = "error"

	FallbackLang = "en-us"
)

var ErrUnknownLanguage = errors.New("unsupported language")

// Bundle reads resources laid out as <lang>/<file>.
type Bundle struct {
	fsys fs.FS
	pick func(n int) int
}

// Default returns the resources compiled into the binary.
func Default() *Bundle {
	sub, err := fs.Sub(embedded, "data")
	if err != nil {
		panic(err)
	}
	return New(sub)
}

func New(fsys fs.FS) *Bundle {
	return &Bundle{fsys: fsys, pick: rand.IntN}
}

// Languages lists every language directory, sorted.
func (b *Bundle) Languages() ([]string, error) {
	entries, err := fs.ReadDir(b.fsys, ".")
	if err != nil {
		return nil, err
	}
	var langs []string
	for _, e := range entries {
		if e.IsDir() {
			langs = append(langs, e.Name())
		}
	}
	sort.Strings(langs)
	return langs, nil
}

// Resolve maps a session locale such as "en-US" or "en" onto a language
// directory.
func (b *Bundle) Resolve(locale string) (string, error) {
	langs, err := b.Languages()
	if err != nil {
		return "", err
	}
	want := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(locale), "_", "-"))
	for _, l := range langs {
		if l == want {
			return l, nil
		}
	}
	base := intent.BaseLang(want)
	for _, l := range langs {
		if intent.BaseLang(l) == base {
			return l, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLanguage, locale)
}

// Templates returns the expanded templates in lang's intent file. A missing
// file yields an error wrapping fs.ErrNotExist.
func (b *Bundle) Templates(lang, name string) ([]string, error) {
	f, err := b.fsys.Open(path.Join(lang, name))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return intent.ParseTemplates(f)
}

// Dialog renders one line of the dialog file, substituting {key} with
// data. Unknown dialogs are spoken as their id.
func (b *Bundle) Dialog(locale, id string, data map[string]string) string {
	lines := b.dialogLines(locale, id)
	if len(lines) == 0 {
		return render(strings.ReplaceAll(id, "_", " "), data)
	}
	return render(lines[b.pick(len(lines))], data)
}

func (b *Bundle) dialogLines(locale, id string) []string {
	candidates := []string{FallbackLang}
	if lang, err := b.Resolve(locale); err == nil && lang != FallbackLang {
		candidates = append([]string{lang}, candidates...)
	}

	for _, lang := range candidates {
		data, err := fs.ReadFile(b.fsys, path.Join(lang, id+".dialog"))
		if err != nil {
			continue
		}
		var lines []string
		scanner := bufio.NewScanner(strings.NewReader(string(data)))
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" && !strings.HasPrefix(line, "#") {
				lines = append(lines, line)
			}
		}
		if len(lines) > 0 {
			return lines
		}
	}
	return nil
}

func render(line string, data map[string]string) string {
	for k, v := range data {
		line = strings.ReplaceAll(line, "{"+k+"}", v)
	}
	return line
}
