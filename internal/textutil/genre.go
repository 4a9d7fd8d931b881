package textutil

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// genreAliases maps normalized spellings of common genres to their canonical
// display names.
var genreAliases = map[string]string{
	"hip hop":     "Hip-Hop",
	"hiphop":      "Hip-Hop",
	"hip-hop":     "Hip-Hop",
	"r&b":         "R&B",
	"rnb":         "R&B",
	"r and b":     "R&B",
	"drum n bass": "Drum & Bass",
	"dnb":         "Drum & Bass",
	"edm":         "Electronic",
	"electro":     "Electronic",
	"alt rock":    "Alternative Rock",
	"indie":       "Indie",
	"lofi":        "Lo-Fi",
	"lo fi":       "Lo-Fi",
}

// CleanGenre normalizes a raw genre token: trims, resolves common aliases,
// and title-cases the rest. Returns "" for blank input.
func CleanGenre(genre string) string {
	normalized := Normalize(genre)
	if normalized == "" {
		return ""
	}
	if canonical, ok := genreAliases[normalized]; ok {
		return canonical
	}
	return titleCaser.String(normalized)
}
