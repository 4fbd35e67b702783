// Package catalog parses bulk problem lists and embeds the curated ones.
package catalog

import (
	"embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/mpblatz/repeet/internal/domain"
)

//go:embed lists/*.txt
var lists embed.FS

// Curated list names.
const (
	Grind75     = "grind-75"
	NeetCode150 = "neetcode-150"
)

var listFiles = map[string]string{
	Grind75:     "lists/grind-75.txt",
	NeetCode150: "lists/neetcode-150.txt",
}

// Names returns the names of the embedded lists in sorted order.
func Names() []string {
	names := make([]string, 0, len(listFiles))
	for name := range listFiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup parses the embedded list called name, tagging each item with the
// list name as its source.
func Lookup(name string) ([]domain.NewProblem, error) {
	path, ok := listFiles[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, domain.NewValidationError("list", fmt.Sprintf("unknown list %q", name))
	}
	f, err := lists.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open list %s: %w", name, err)
	}
	defer f.Close()

	source := strings.ToLower(strings.TrimSpace(name))
	return Parse(f, &source)
}

// Parse reads lines of the form name,difficulty,topic,url. Every field after
// the name is optional. Lines with an empty name are dropped. A blank
// difficulty means Medium; an unrecognised one is kept verbatim so that
// validation rejects it.
func Parse(r io.Reader, source *string) ([]domain.NewProblem, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	var out []domain.NewProblem
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, domain.NewValidationError("text", err.Error())
		}

		name := strings.TrimSpace(field(record, 0))
		if name == "" {
			continue
		}
		difficulty, _ := domain.ParseDifficulty(field(record, 1))

		item := domain.NewProblem{
			Name:       name,
			Difficulty: difficulty,
			Topic:      optional(field(record, 2)),
			Link:       optional(field(record, 3)),
			Source:     source,
		}
		out = append(out, item.Normalize())
	}
	return out, nil
}

func field(record []string, i int) string {
	if i < len(record) {
		return record[i]
	}
	return ""
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
