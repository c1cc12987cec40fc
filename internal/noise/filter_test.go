package noise

import "testing"

func TestIsNoiseRejectsFillers(t *testing.T) {
	f := NewFilter(French)

	cases := []string{
		"euh",
		"euh euh euh",
		"Hmm.",
		"ok",
		"Bonjour",
		"...",
		"!?",
		"ah",
		"Sous-titrage Société Radio-Canada",
		"Sous-titres réalisés par la communauté d'Amara.org",
		"Merci d'avoir regardé cette vidéo",
		"France Inter",
	}
	for _, tc := range cases {
		if !f.IsNoise(tc) {
			t.Fatalf("IsNoise(%q) = false, want true", tc)
		}
	}
}

func TestIsNoiseRejectsShortTranscripts(t *testing.T) {
	f := NewFilter(French)

	for _, tc := range []string{"", "a", "ab", "la", "ici"} {
		if !f.IsNoise(tc) {
			t.Fatalf("IsNoise(%q) = false, want true for short input", tc)
		}
	}
}

func TestIsNoiseRejectsForeignScript(t *testing.T) {
	f := NewFilter(French)

	if !f.IsNoise("これはテストです") {
		t.Fatalf("IsNoise() = false for non-Latin script, want true")
	}
	if !f.IsNoise("Привет как дела") {
		t.Fatalf("IsNoise() = false for Cyrillic, want true")
	}
}

func TestIsNoiseRejectsSymbolHeavyTranscripts(t *testing.T) {
	f := NewFilter(French)

	if !f.IsNoise("1234 5678 90 12") {
		t.Fatalf("IsNoise() = false for digit-heavy input, want true")
	}
}

func TestIsNoiseKeepsRealUtterances(t *testing.T) {
	f := NewFilter(French)

	cases := []string{
		"Quels sont les horaires d'ouverture ?",
		"Je voudrais contacter mon député",
		"Active le thème sombre",
		"Peux-tu générer une attestation de présence",
		"Où se trouve l'hémicycle",
	}
	for _, tc := range cases {
		if f.IsNoise(tc) {
			t.Fatalf("IsNoise(%q) = true, want false", tc)
		}
	}
}

func TestIsNoiseIsPure(t *testing.T) {
	f := NewFilter(French)

	in := "Quels sont les horaires d'ouverture ?"
	first := f.IsNoise(in)
	for i := 0; i < 10; i++ {
		if f.IsNoise(in) != first {
			t.Fatalf("IsNoise() result changed between calls")
		}
	}
}
