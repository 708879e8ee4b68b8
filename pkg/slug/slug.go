package slug

import (
	"regexp"
	"strings"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

var fold = strings.NewReplacer(
	"à", "a", "á", "a", "â", "a", "ä", "a", "ã", "a", "å", "a",
	"ç", "c", "è", "e", "é", "e", "ê", "e", "ë", "e",
	"ì", "i", "í", "i", "î", "i", "ï", "i", "ı", "i",
	"ñ", "n", "ò", "o", "ó", "o", "ô", "o", "ö", "o", "ø", "o",
	"ù", "u", "ú", "u", "û", "u", "ü", "u", "ğ", "g", "ş", "s", "ß", "ss",
	"&", " and ",
)

// Generate lower-cases name, folds common accented letters to ASCII and joins
// the remaining alphanumeric runs with single hyphens.
//
//	"Joe's Café & Bar" -> "joe-s-cafe-and-bar"
func Generate(name string) string {
	s := fold.Replace(strings.ToLower(strings.TrimSpace(name)))
	s = nonAlnum.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// Equal reports whether a and b normalize to the same slug.
func Equal(a, b string) bool {
	return Generate(a) == Generate(b)
}
