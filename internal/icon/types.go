// Package icon defines the icon metadata model and the capabilities shared by
// the index builder, the exporters, and the HTTP surface.
package icon

import (
	"path"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Record is the canonical metadata unit for one icon asset. Records are created
// by the index builder and never mutated afterwards.
type Record struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Category     string `json:"category"`
	FileName     string `json:"fileName"`
	RelativePath string `json:"relativePath"`
}

// Library is the loaded pair of static artifacts. It is shared read-only.
type Library struct {
	Icons      []Record
	Categories []string
}

// Lookup returns the record with the given id.
func (l Library) Lookup(id string) (Record, bool) {
	for _, rec := range l.Icons {
		if rec.ID == id {
			return rec, true
		}
	}
	return Record{}, false
}

// AssetRoot is the prefix of every relativePath.
const AssetRoot = "icons"

var servicePrefix = regexp.MustCompile(`^\d+-icon-service-`)

// NewRecord derives a Record for fileName found directly inside a directory
// named category.
func NewRecord(category, fileName string) Record {
	id := strings.TrimSuffix(fileName, path.Ext(fileName))
	return Record{
		ID:           id,
		Name:         DisplayName(id),
		Category:     category,
		FileName:     fileName,
		RelativePath: AssetRoot + "/" + category + "/" + fileName,
	}
}

// DisplayName turns an icon id into its human-readable label, e.g.
// "10-icon-service-virtual-machines" becomes "Virtual Machines".
func DisplayName(id string) string {
	name := servicePrefix.ReplaceAllString(id, "")
	name = strings.ReplaceAll(name, "-", " ")
	return titleWords(name)
}

// titleWords uppercases the first letter of every word. A word starts at a word
// character that follows a non-word character, so "a_b c" becomes "A_b C".
func titleWords(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevWord := false
	for _, r := range s {
		isWord := r == '_' || r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r))
		if isWord && !prevWord {
			r = unicode.ToUpper(r)
		}
		prevWord = isWord
		b.WriteRune(r)
	}
	return b.String()
}

// SanitizeFileName replaces every character outside [A-Za-z0-9] with '-'.
func SanitizeFileName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('-')
	}
	return b.String()
}
