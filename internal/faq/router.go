package faq

import (
	"strings"
	"unicode"

	"github.com/agoravox/agoravox/internal/policy"
)

// Tier classifies how one utterance will be answered.
type Tier string

const (
	TierLocal  Tier = "local"
	TierCached Tier = "cached"
	TierRemote Tier = "remote"
)

// Decision is the routing outcome for one transcript. Computed once,
// consumed immediately, never persisted.
type Decision struct {
	Tier               Tier
	EstimatedCostCents float64
	Answer             string
}

// Pricing assumptions for the cost estimate. These feed metering only; the
// numbers do not have to be exact, just stable.
const (
	remoteBaseCostCents    = 0.8
	remoteCostCentsPerWord = 0.05
)

// Entry is one canned answer. An empty Audiences list means everyone.
type Entry struct {
	Answer    string
	Audiences []policy.Role
}

// Router answers frequently asked questions from a static table before any
// remote cost is incurred.
type Router struct {
	entries map[string]Entry
}

func NewRouter() *Router {
	return &Router{entries: defaultEntries()}
}

// NewRouterWithEntries builds a router over a caller-supplied table, keyed by
// raw question text (normalization is applied here).
func NewRouterWithEntries(raw map[string]Entry) *Router {
	entries := make(map[string]Entry, len(raw))
	for q, e := range raw {
		entries[normalize(q)] = e
	}
	return &Router{entries: entries}
}

// Route classifies the transcript. Cache hits cost nothing; misses carry a
// length-derived estimate for the remote completion that will follow.
func (r *Router) Route(transcript string, audience policy.Role, cacheEnabled bool) Decision {
	if cacheEnabled {
		if entry, ok := r.entries[normalize(transcript)]; ok && audienceAllowed(entry, audience) {
			return Decision{Tier: TierCached, Answer: entry.Answer}
		}
	}
	words := len(strings.Fields(transcript))
	return Decision{
		Tier:               TierRemote,
		EstimatedCostCents: remoteBaseCostCents + remoteCostCentsPerWord*float64(words),
	}
}

func audienceAllowed(entry Entry, audience policy.Role) bool {
	if len(entry.Audiences) == 0 {
		return true
	}
	for _, a := range entry.Audiences {
		if a == audience {
			return true
		}
	}
	return false
}

func defaultEntries() map[string]Entry {
	raw := map[string]Entry{
		"Quels sont les horaires d'ouverture ?": {
			Answer: "Le portail est accessible en permanence. L'accueil physique du Parlement est ouvert du lundi au vendredi, de 9h à 18h.",
		},
		"Comment contacter mon député ?": {
			Answer: "Ouvrez la page Députés, sélectionnez votre circonscription, puis utilisez le bouton Contacter sur la fiche de votre député.",
		},
		"Comment assister à une séance ?": {
			Answer: "Les séances publiques sont ouvertes sur inscription depuis la page Agenda, dans la limite des places disponibles.",
		},
		"Où trouver les comptes rendus ?": {
			Answer: "Les comptes rendus des séances et des commissions sont publiés dans la rubrique Documents, classés par date.",
		},
		"Comment suivre un projet de loi ?": {
			Answer: "Chaque projet de loi dispose d'une fiche de suivi dans la rubrique Votes, avec les étapes de la navette et les scrutins associés.",
		},
		"Comment déposer une question écrite ?": {
			Answer:    "Le dépôt de questions écrites se fait depuis votre espace député, rubrique Questions, avant le mardi midi.",
			Audiences: []policy.Role{policy.RoleDeputy, policy.RoleAdmin},
		},
	}
	entries := make(map[string]Entry, len(raw))
	for q, e := range raw {
		entries[normalize(q)] = e
	}
	return entries
}

// normalize folds case, accents and punctuation so close phrasings of the
// same question share one cache key.
func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(
		"à", "a", "â", "a", "ä", "a",
		"é", "e", "è", "e", "ê", "e", "ë", "e",
		"î", "i", "ï", "i",
		"ô", "o", "ö", "o",
		"ù", "u", "û", "u", "ü", "u",
		"ç", "c",
		"œ", "oe",
		"'", " ",
		"’", " ",
	).Replace(s)

	var b strings.Builder
	b.Grow(len(s))
	prevSpace := true
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			prevSpace = false
		default:
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}
