package main

import (
	"path/filepath"
	"strings"
	"unicode"
)

// captionFromName turns "photos/2024_07-beach day.jpg" into "2024 07 beach day".
// PDF page names ("doc.pdf#3") become "doc 3".
func captionFromName(name string) string {
	page := ""
	if i := strings.LastIndex(name, "#"); i >= 0 && strings.HasSuffix(strings.ToLower(name[:i]), ".pdf") {
		name, page = name[:i], name[i+1:]
	}
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	words := strings.FieldsFunc(base, func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || unicode.IsSpace(r)
	})
	if page != "" {
		words = append(words, page)
	}
	return strings.Join(words, " ")
}
