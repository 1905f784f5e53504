package batch

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Item is one utterance, handled in its own session.
type Item struct {
	Index     int
	Utterance string
	Lang      string
}

type jsonItem struct {
	Utterance string `json:"utterance"`
	Lang      string `json:"lang,omitempty"`
}

func ParseFile(path string) ([]Item, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return ParseJSON(file)
	case ".txt", "":
		return ParseText(file)
	default:
		return nil, fmt.Errorf("unsupported file format %q: use .txt or .json", ext)
	}
}

// ParseText reads one utterance per line. Blank lines and '#' comments are
// skipped.
func ParseText(r io.Reader) ([]Item, error) {
	var items []Item
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		items = append(items, Item{Index: len(items) + 1, Utterance: line})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("no utterances found in file")
	}
	return items, nil
}

// ParseJSON reads [{"utterance": "...", "lang": "..."}].
func ParseJSON(r io.Reader) ([]Item, error) {
	var raw []jsonItem
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("no utterances found in file")
	}

	items := make([]Item, len(raw))
	for i, ji := range raw {
		u := strings.TrimSpace(ji.Utterance)
		if u == "" {
			return nil, fmt.Errorf("item %d has empty utterance", i+1)
		}
		items[i] = Item{Index: i + 1, Utterance: u, Lang: strings.TrimSpace(ji.Lang)}
	}
	return items, nil
}
