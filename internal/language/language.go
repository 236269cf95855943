// Package language normalises language hints supplied by callers.
package language

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/tokenizer"
)

// Canonical is the language every canonical entry is written in.
const Canonical = "en"

// iso639_2to1 maps ISO 639-2 (3-letter) codes to ISO 639-1 codes.
var iso639_2to1 = map[string]string{
	"eng": "en", "spa": "es", "fra": "fr", "fre": "fr", "deu": "de",
	"ger": "de", "ita": "it", "por": "pt", "zho": "zh", "chi": "zh",
	"vie": "vi", "kor": "ko", "ara": "ar", "hin": "hi", "rus": "ru",
	"tgl": "tl", "fil": "tl",
}

// nameToCode maps language names, in English and in the language itself,
// to ISO 639-1 codes. Keys are accent-folded.
var nameToCode = map[string]string{
	"english": "en", "ingles": "en",
	"spanish": "es", "espanol": "es", "castellano": "es",
	"french": "fr", "francais": "fr",
	"german": "de", "deutsch": "de",
	"italian": "it", "italiano": "it",
	"portuguese": "pt", "portugues": "pt",
	"chinese": "zh", "mandarin": "zh",
	"vietnamese": "vi", "korean": "ko", "arabic": "ar",
	"hindi": "hi", "russian": "ru", "tagalog": "tl", "filipino": "tl",
}

// Code converts a language hint to an ISO 639-1 code. It accepts:
//   - ISO 639-1 codes: "es" -> "es"
//   - ISO 639-2 codes: "spa" -> "es"
//   - Locale codes: "es-MX", "es_ES" -> "es"
//   - Language names: "Spanish", "Español" -> "es"
//
// Unrecognised hints return "".
func Code(raw string) string {
	s := tokenizer.Fold(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	if code, ok := nameToCode[s]; ok {
		return code
	}
	if idx := strings.IndexAny(s, "-_"); idx > 0 {
		s = s[:idx]
	}
	switch len(s) {
	case 2:
		if isLetters(s) {
			return s
		}
	case 3:
		if code, ok := iso639_2to1[s]; ok {
			return code
		}
	}
	return ""
}

// IsCanonical reports whether hint names the canonical language. Empty and
// unrecognised hints count as canonical.
func IsCanonical(hint, canonical string) bool {
	code := Code(hint)
	if code == "" {
		return true
	}
	if canonical == "" {
		canonical = Canonical
	}
	return code == canonical
}

func isLetters(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
