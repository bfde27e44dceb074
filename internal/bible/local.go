package bible

import (
	"regexp"
	"strings"
)

// Deterministic bible maintenance for chunks where the AI extractor is
// skipped or fails. These helpers keep continuity moving without any model
// call: a rough voice inference, a short scene digest, and style decisions
// lifted from the translator notes.

// HasUnenrichedCandidates reports whether any locally detected candidate is
// still missing from the bible or carries only the generic description. The
// extractor is forced on those chunks so characters get enriched where they
// first appear, not several chunks later.
func HasUnenrichedCandidates(candidates map[string]string, b *Bible) bool {
	for name := range candidates {
		desc, known := b.Characters[name]
		if !known || desc == GenericCharacterDescription {
			return true
		}
	}
	return false
}

// BuildLocalUpdate produces the deterministic per-chunk Update. Voice is
// only inferred while the bible still carries the bootstrap default; once
// the AI sets an enriched voice the local heuristic must not overwrite it.
func BuildLocalUpdate(translatedText, notes, existingVoice string, detected map[string]string) Update {
	voice := ""
	if existingVoice == "" || existingVoice == DefaultVoice {
		voice = inferNarrativeVoice(translatedText)
	}
	return Update{
		Voice:      voice,
		Characters: detected,
		Decisions:  extractStyleDecisions(notes, 5),
		LastScene:  sceneDigest(translatedText, 280),
	}
}

// MergeUpdates combines the local update with the AI extraction. The AI
// wins for voice and last scene; glossary and characters are unioned with
// the AI overriding, and explicitly rejected names are dropped.
func MergeUpdates(local Update, extracted *Update) Update {
	if extracted == nil {
		return local
	}

	glossary := make(map[string]string, len(local.Glossary)+len(extracted.Glossary))
	for k, v := range local.Glossary {
		glossary[k] = v
	}
	for k, v := range extracted.Glossary {
		glossary[k] = v
	}

	characters := make(map[string]string, len(local.Characters)+len(extracted.Characters))
	for k, v := range local.Characters {
		characters[k] = v
	}
	for k, v := range extracted.Characters {
		characters[k] = v
	}
	for _, rejected := range extracted.Rejected {
		delete(characters, rejected)
	}

	var decisions []string
	seen := map[string]struct{}{}
	for _, d := range append(append([]string{}, local.Decisions...), extracted.Decisions...) {
		if d == "" {
			continue
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		decisions = append(decisions, d)
	}

	merged := Update{
		Glossary:   glossary,
		Characters: characters,
		Decisions:  decisions,
		Rejected:   extracted.Rejected,
	}
	merged.Voice = extracted.Voice
	if merged.Voice == "" {
		merged.Voice = local.Voice
	}
	merged.LastScene = extracted.LastScene
	if merged.LastScene == "" {
		merged.LastScene = local.LastScene
	}
	return merged
}

var (
	firstPersonTokens = []string{" i ", " me ", " my ", " we ", " our ", " yo ", " mi ", " conmigo ", " nosotros "}
	thirdPersonTokens = []string{" he ", " she ", " they ", " his ", " her ", " their ", " él ", " ella ", " ellos ", " ellas ", " su ", " sus "}

	pastVerbRe    = regexp.MustCompile(`\b(was|were|had|said|thought|looked|walked|fue|era|estaba|había|dijo|pensó|miró|entró)\b`)
	presentVerbRe = regexp.MustCompile(`\b(is|are|has|says|thinks|looks|walks|es|está|dice|piensa|mira|entra|hay)\b`)
)

// inferNarrativeVoice makes a rough person and tense call from pronoun and
// verb frequencies. Good enough to bootstrap; the AI extractor refines it.
func inferNarrativeVoice(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	lowered := " " + strings.ToLower(text) + " "

	firstHits := 0
	for _, token := range firstPersonTokens {
		if strings.Contains(lowered, token) {
			firstHits++
		}
	}
	thirdHits := 0
	for _, token := range thirdPersonTokens {
		if strings.Contains(lowered, token) {
			thirdHits++
		}
	}

	person := "third-person"
	if firstHits >= 2 && firstHits > thirdHits {
		person = "first-person"
	}

	tense := "past tense"
	if len(presentVerbRe.FindAllString(lowered, -1)) > len(pastVerbRe.FindAllString(lowered, -1)) {
		tense = "present tense"
	}

	return person + " narrator, " + tense
}

var sentenceEndRe = regexp.MustCompile(`([.!?])\s+`)

// sceneDigest is a short deterministic continuity summary: the first two
// sentences, clipped to maxChars.
func sceneDigest(text string, maxChars int) string {
	clean := strings.Join(strings.Fields(text), " ")
	if clean == "" {
		return "Not enough content to summarize the scene."
	}

	marked := sentenceEndRe.ReplaceAllString(clean, "$1\x00")
	sentences := strings.SplitN(marked, "\x00", 3)
	summary := strings.TrimSpace(strings.Join(sentences[:minInt(2, len(sentences))], " "))
	if summary == "" {
		summary = clean
	}

	if runes := []rune(summary); len(runes) > maxChars {
		summary = strings.TrimSpace(string(runes[:maxChars-1])) + "…"
	}
	return summary
}

var decisionKeywords = []string{
	"keep", "preserve", "adapt", "translate", "style", "tone",
	"register", "consistency", "voice", "narrator", "tense",
	"perspective", "formal", "informal", "proper noun", "term",
	"mantener", "preservar", "adaptar", "traducir", "estilo", "tono",
	"registro", "consistencia", "voz", "narrador", "tiempo verbal",
	"perspectiva", "tutear", "ustedear", "nombre propio", "término",
}

// extractStyleDecisions lifts short decision sentences out of the notes
// whenever they carry an explicit translation-decision signal.
func extractStyleDecisions(notes string, maxItems int) []string {
	if notes == "" {
		return nil
	}

	var decisions []string
	for _, sentence := range strings.Split(notes, ".") {
		fragment := strings.TrimSpace(sentence)
		if fragment == "" {
			continue
		}
		lowered := strings.ToLower(fragment)
		for _, keyword := range decisionKeywords {
			if strings.Contains(lowered, keyword) {
				decisions = append(decisions, fragment)
				break
			}
		}
		if len(decisions) >= maxItems {
			break
		}
	}
	return decisions
}
