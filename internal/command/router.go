package command

import (
	"strings"

	"github.com/agoravox/agoravox/internal/tools"
)

// Match is the result of resolving a transcript against the local intent table.
// ToolCall mirrors the remote function-call shape so both paths share one
// dispatcher; Response is an optional immediate spoken acknowledgment.
type Match struct {
	ToolCall tools.Call
	Response string
}

type rule struct {
	// All anchors must appear in the normalized transcript.
	anchors [][]string
	build   func(normalized string) Match
}

// Router resolves frequent commands without a remote completion. Matching is
// deterministic keyword matching, never model inference; side effects belong
// to the dispatcher.
type Router struct {
	rules []rule
}

func NewRouter() *Router {
	return &Router{rules: defaultRules()}
}

// Match attempts to resolve the transcript to a local intent. On a hit the
// caller must cancel any in-flight remote response to avoid double billing.
func (r *Router) Match(transcript string) (Match, bool) {
	normalized := normalize(transcript)
	if normalized == "" {
		return Match{}, false
	}
	for _, rl := range r.rules {
		if matchesAnchors(normalized, rl.anchors) {
			return rl.build(normalized), true
		}
	}
	return Match{}, false
}

func defaultRules() []rule {
	return []rule{
		{
			anchors: [][]string{{"stop", "arrete", "raccroche", "au revoir", "termine la conversation", "fin de la conversation"}},
			build: func(string) Match {
				return Match{
					ToolCall: tools.Call{Name: "stop_conversation", Arguments: map[string]any{}},
					Response: "D'accord, à bientôt.",
				}
			},
		},
		{
			anchors: [][]string{{"voix"}, {"change", "autre", "masculine", "feminine", "homme", "femme"}},
			build: func(normalized string) Match {
				voice := ""
				switch {
				case containsAny(normalized, "masculine", "homme"):
					voice = "echo"
				case containsAny(normalized, "feminine", "femme"):
					voice = "shimmer"
				}
				args := map[string]any{}
				if voice != "" {
					args["voice"] = voice
				}
				return Match{
					ToolCall: tools.Call{Name: "change_voice", Arguments: args},
					Response: "Je change de voix.",
				}
			},
		},
		{
			anchors: [][]string{{"theme", "mode"}, {"sombre", "nuit", "fonce"}},
			build: func(string) Match {
				return Match{
					ToolCall: tools.Call{Name: "control_ui", Arguments: map[string]any{"action": "set_theme_dark"}},
					Response: "Thème sombre activé.",
				}
			},
		},
		{
			anchors: [][]string{{"theme", "mode"}, {"clair", "jour"}},
			build: func(string) Match {
				return Match{
					ToolCall: tools.Call{Name: "control_ui", Arguments: map[string]any{"action": "set_theme_light"}},
					Response: "Thème clair activé.",
				}
			},
		},
		{
			anchors: [][]string{{"va ", "ouvre", "affiche", "montre", "emmene"}, {"page", "documents", "deputes", "agenda", "accueil", "votes", "scrutins", "contact"}},
			build: func(normalized string) Match {
				path := pathForDestination(normalized)
				return Match{
					ToolCall: tools.Call{Name: "navigate_app", Arguments: map[string]any{"path": path}},
					Response: "J'ouvre la page demandée.",
				}
			},
		},
	}
}

func pathForDestination(normalized string) string {
	switch {
	case containsAny(normalized, "documents"):
		return "/documents"
	case containsAny(normalized, "deputes", "depute"):
		return "/deputes"
	case containsAny(normalized, "agenda", "calendrier"):
		return "/agenda"
	case containsAny(normalized, "votes", "scrutins"):
		return "/votes"
	case containsAny(normalized, "contact"):
		return "/contact"
	default:
		return "/"
	}
}

func matchesAnchors(normalized string, anchors [][]string) bool {
	for _, group := range anchors {
		if !containsAny(normalized, group...) {
			return false
		}
	}
	return true
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// normalize lowercases and strips the accents the rule table is written
// without, so "thème" and "theme" both match.
func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	replacer := strings.NewReplacer(
		"à", "a", "â", "a", "ä", "a",
		"é", "e", "è", "e", "ê", "e", "ë", "e",
		"î", "i", "ï", "i",
		"ô", "o", "ö", "o",
		"ù", "u", "û", "u", "ü", "u",
		"ç", "c",
		"œ", "oe",
	)
	return replacer.Replace(s)
}
