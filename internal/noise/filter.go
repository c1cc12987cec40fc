package noise

import (
	"regexp"
	"strings"
	"unicode"
)

// Language describes the alphabet and filler inventory the filter is tuned for.
// The heuristics are conservative on purpose: a false positive silently drops a
// real utterance, a false negative only wastes one remote completion.
type Language struct {
	Code string
	// Fillers are matched against the whole normalized transcript.
	Fillers []string
	// FillerPatterns catch multi-word backchannel and broadcast-caption noise.
	FillerPatterns []*regexp.Regexp
}

// French is the default profile for the parliament portal deployment.
var French = Language{
	Code: "fr",
	Fillers: []string{
		"euh", "heu", "hum", "hmm", "mmh", "mh", "hm",
		"ah", "oh", "eh", "hein", "bah", "ben", "bof",
		"ok", "okay", "oui", "non", "ouais", "si",
		"merci", "bonjour", "bonsoir", "salut", "allo", "allô",
		"voilà", "voila", "quoi", "bref", "d'accord", "daccord",
	},
	FillerPatterns: []*regexp.Regexp{
		// Speech-to-text models hallucinate broadcast captions on silence.
		regexp.MustCompile(`(?i)sous-?\s?titr(age|es)`),
		regexp.MustCompile(`(?i)amara\.org`),
		regexp.MustCompile(`(?i)merci d'avoir regardé`),
		regexp.MustCompile(`(?i)abonnez-vous`),
		regexp.MustCompile(`(?i)^(france (inter|info|culture)|rtl|bfm ?tv|europe 1)$`),
		// Pure hesitation runs ("euh euh euh", "hum hum").
		regexp.MustCompile(`(?i)^(euh|heu|hum|hmm|mmh|ah|oh|eh)([ ,.]+(euh|heu|hum|hmm|mmh|ah|oh|eh))*[ ,.!?]*$`),
	},
}

// Filter rejects low-value transcripts before they cost a remote completion.
type Filter struct {
	lang Language
}

func NewFilter(lang Language) *Filter {
	if lang.Code == "" {
		lang = French
	}
	return &Filter{lang: lang}
}

const (
	minTranscriptLen  = 3
	minSingleTokenLen = 5
	minLetterRatio    = 0.5
)

// IsNoise reports whether the transcript should be dropped without a response.
// Pure function of its input: no I/O, no state.
func (f *Filter) IsNoise(transcript string) bool {
	trimmed := strings.TrimSpace(transcript)
	if len([]rune(trimmed)) < minTranscriptLen {
		return true
	}

	normalized := normalize(trimmed)
	if normalized == "" {
		// Punctuation-only transcript.
		return true
	}

	tokens := strings.Fields(normalized)
	if len(tokens) == 1 && len([]rune(tokens[0])) < minSingleTokenLen {
		return true
	}

	for _, filler := range f.lang.Fillers {
		if normalized == filler {
			return true
		}
	}
	for _, re := range f.lang.FillerPatterns {
		if re.MatchString(trimmed) {
			return true
		}
	}

	letters := 0
	foreign := 0
	total := 0
	for _, r := range trimmed {
		total++
		switch {
		case unicode.Is(unicode.Latin, r):
			letters++
		case unicode.IsLetter(r):
			foreign++
		case r == ' ' || r == '\'' || r == '-':
			letters++
		}
	}
	if foreign > 0 {
		return true
	}
	if total > 0 && float64(letters)/float64(total) < minLetterRatio {
		return true
	}

	return false
}

func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevSpace := true
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || r == '\'':
			b.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r) || unicode.IsPunct(r):
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}
