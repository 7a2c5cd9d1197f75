package transcript

import (
	"fmt"
	"strings"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
)

// whisperNames maps the language names Whisper reports in verbose_json
// to ISO 639-1 codes. Codes are accepted directly by Normalize.
var whisperNames = map[string]string{
	"afrikaans":  "af",
	"arabic":     "ar",
	"bulgarian":  "bg",
	"bengali":    "bn",
	"catalan":    "ca",
	"chinese":    "zh",
	"croatian":   "hr",
	"czech":      "cs",
	"danish":     "da",
	"dutch":      "nl",
	"english":    "en",
	"estonian":   "et",
	"finnish":    "fi",
	"french":     "fr",
	"german":     "de",
	"greek":      "el",
	"gujarati":   "gu",
	"hebrew":     "he",
	"hindi":      "hi",
	"hungarian":  "hu",
	"indonesian": "id",
	"italian":    "it",
	"japanese":   "ja",
	"kannada":    "kn",
	"korean":     "ko",
	"latvian":    "lv",
	"lithuanian": "lt",
	"macedonian": "mk",
	"malay":      "ms",
	"malayalam":  "ml",
	"marathi":    "mr",
	"norwegian":  "no",
	"persian":    "fa",
	"polish":     "pl",
	"portuguese": "pt",
	"punjabi":    "pa",
	"romanian":   "ro",
	"russian":    "ru",
	"serbian":    "sr",
	"slovak":     "sk",
	"slovenian":  "sl",
	"spanish":    "es",
	"swahili":    "sw",
	"swedish":    "sv",
	"tagalog":    "tl",
	"tamil":      "ta",
	"telugu":     "te",
	"thai":       "th",
	"turkish":    "tr",
	"ukrainian":  "uk",
	"urdu":       "ur",
	"vietnamese": "vi",
}

// Normalize resolves a language code, locale, or Whisper language name to
// its ISO 639-1 base code: "pt_BR" -> "pt", "English" -> "en".
// Empty input means unknown and returns "".
func Normalize(code string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(code))
	if s == "" {
		return "", nil
	}
	if iso, ok := whisperNames[s]; ok {
		return iso, nil
	}

	tag, err := language.Parse(strings.ReplaceAll(s, "_", "-"))
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidLanguage, code, err)
	}
	base, conf := tag.Base()
	if conf == language.No {
		return "", fmt.Errorf("%w: %q", ErrInvalidLanguage, code)
	}
	return base.String(), nil
}

// Detect guesses the ISO 639-1 code of text. It returns "" when the guess
// is not reliable or the language has no two-letter code.
func Detect(text string) string {
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return ""
	}
	return info.Lang.Iso6391()
}

// WithLanguage returns a copy of t whose Language is a normalized code.
// A missing or unrecognized language is detected from the text.
func WithLanguage(t Transcript) Transcript {
	out := t.Clone()
	if code, err := Normalize(t.Language); err == nil && code != "" {
		out.Language = code
		return out
	}
	text := t.Text
	if text == "" {
		parts := make([]string, len(t.Segments))
		for i, s := range t.Segments {
			parts[i] = s.Text
		}
		text = strings.Join(parts, " ")
	}
	out.Language = Detect(text)
	return out
}
