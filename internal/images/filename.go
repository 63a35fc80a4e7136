package images

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxFilenameLen = 120

var (
	unsafeBaseChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
	unsafeExtChars  = regexp.MustCompile(`[^a-z0-9]+`)

	// asciiFold decomposes accented characters and strips the combining
	// marks, so "Pavé" folds to "Pave" before the unsafe-character pass.
	asciiFold = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
)

// sanitizeFilename reduces a client-supplied filename to a lowercase ASCII
// slug that is safe inside an object storage key. The base name and extension
// are cleaned separately so "Špéciål Name!!.PNG" becomes "special-name.png".
// A name with nothing salvageable becomes "file".
func sanitizeFilename(name string) string {
	if name == "" {
		name = "file"
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	// Dotfiles like ".bashrc" have no real extension.
	if strings.Trim(base, ".") == "" {
		base, ext = name, ""
	}

	safeBase := unsafeBaseChars.ReplaceAllString(toASCII(base), "-")
	safeBase = strings.ToLower(strings.Trim(safeBase, "-._"))
	if safeBase == "" {
		safeBase = "file"
	}
	if len(safeBase) > maxFilenameLen {
		safeBase = safeBase[:maxFilenameLen]
	}

	safeExt := unsafeExtChars.ReplaceAllString(strings.ToLower(toASCII(ext)), "")
	if safeExt != "" {
		safeExt = "." + safeExt
	}
	return safeBase + safeExt
}

// toASCII folds accents away and drops whatever non-ASCII remains.
func toASCII(s string) string {
	folded, _, err := transform.String(asciiFold, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if r < 128 {
			b.WriteRune(r)
		}
	}
	return b.String()
}
