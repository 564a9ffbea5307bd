package catalog

import (
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	titleCaser = cases.Title(language.French)
	folder     = cases.Fold()
)

// NormalizeLabel collapses whitespace and title-cases a famille label:
// "  filtres   a HUILE" becomes "Filtres A Huile".
func NormalizeLabel(s string) string {
	return titleCaser.String(strings.Join(strings.Fields(s), " "))
}

// LabelKey is the comparison key of a label: case folded, accents removed.
// "Échappement" and "echappement " share a key.
func LabelKey(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return folder.String(strings.Join(strings.Fields(out), " "))
}

// uniqueLabels keeps the first spelling of every key, sorted by key.
func uniqueLabels(labels []string) []string {
	seen := make(map[string]string, len(labels))
	keys := make([]string, 0, len(labels))
	for _, l := range labels {
		if strings.TrimSpace(l) == "" {
			continue
		}
		k := LabelKey(l)
		if _, ok := seen[k]; !ok {
			seen[k] = NormalizeLabel(l)
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, seen[k])
	}
	return out
}
