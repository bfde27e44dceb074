// Package bible implements the persistent editorial memory of one book: the
// narrative voice, the glossary of fixed renderings, character notes, style
// decisions and the last-scene summary. The Bible is serialized to JSON and
// stored as an append-only sequence of versions; this package only models
// the in-memory value and the updates folded into it.
package bible

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Growth caps. These bound prompt size as the cast grows, they are not
// correctness limits.
const (
	maxGlossaryEntries  = 600
	maxCharacterEntries = 240
	maxDecisionEntries  = 18
	maxLastSceneChars   = 420
	maxDecisionChars    = 220
)

// GenericCharacterDescription is the placeholder the local detector assigns
// when it has no real information. The AI extractor is allowed to replace it.
const GenericCharacterDescription = "character mentioned in this scene"

const (
	DefaultVoice     = "third-person narrator, past tense"
	defaultLastScene = "Start of the book. No prior context."
)

// Bible is the editorial memory. It starts empty and builds itself chunk by
// chunk.
type Bible struct {
	Voice      string            `json:"voice"`
	Decisions  []string          `json:"decisions"`
	Glossary   map[string]string `json:"glossary"`
	Characters map[string]string `json:"characters"`
	LastScene  string            `json:"last_scene"`
}

// Update is what the extractor returns after a chunk: only what is new, not
// the whole Bible. Rejected lists names the AI confirmed are not characters
// (places, organizations, collective titles); they are removed if present.
type Update struct {
	Voice      string            `json:"voice"`
	Glossary   map[string]string `json:"glossary"`
	Characters map[string]string `json:"characters"`
	Decisions  []string          `json:"decisions"`
	LastScene  string            `json:"last_scene"`
	Rejected   []string          `json:"rejected"`
}

// Empty returns the initial Bible for a new book.
func Empty() *Bible {
	return &Bible{
		Voice:      DefaultVoice,
		Glossary:   map[string]string{},
		Characters: map[string]string{},
		LastScene:  defaultLastScene,
	}
}

// IsEmpty reports whether nothing has been learned yet.
func (b *Bible) IsEmpty() bool {
	return len(b.Glossary) == 0 && len(b.Characters) == 0 && len(b.Decisions) == 0
}

// Apply folds an Update into the Bible. The merge is non-destructive:
// existing glossary and character entries are not overwritten, except that a
// generic placeholder description may be upgraded to a real one. LastScene
// always reflects the most recent chunk.
func (b *Bible) Apply(u Update) {
	if v := strings.TrimSpace(u.Voice); v != "" {
		b.Voice = v
	}

	for _, name := range u.Rejected {
		delete(b.Characters, name)
	}

	for term, rendering := range u.Glossary {
		if _, ok := b.Glossary[term]; !ok && len(b.Glossary) < maxGlossaryEntries {
			b.Glossary[term] = rendering
		}
	}

	for name, description := range u.Characters {
		if !isValidCharacterName(name) {
			continue
		}
		current, known := b.Characters[name]
		switch {
		case !known:
			if len(b.Characters) < maxCharacterEntries {
				b.Characters[name] = description
			}
		case current == GenericCharacterDescription &&
			description != GenericCharacterDescription &&
			strings.TrimSpace(description) != "":
			b.Characters[name] = description
		}
	}

	for _, decision := range u.Decisions {
		cleaned := cleanDecision(decision)
		if cleaned == "" {
			continue
		}
		if isNewDecision(cleaned, b.Decisions) {
			b.Decisions = append(b.Decisions, cleaned)
		}
	}
	if len(b.Decisions) > maxDecisionEntries {
		b.Decisions = b.Decisions[len(b.Decisions)-maxDecisionEntries:]
	}

	if u.LastScene != "" {
		b.LastScene = truncateText(u.LastScene, maxLastSceneChars)
	}
}

// ToJSON serializes the Bible for storage.
func (b *Bible) ToJSON() (string, error) {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FromJSON restores a Bible from its stored form, filling defaults for
// fields older versions may lack.
func FromJSON(raw string) (*Bible, error) {
	b := Empty()
	if err := json.Unmarshal([]byte(raw), b); err != nil {
		return nil, err
	}
	if b.Glossary == nil {
		b.Glossary = map[string]string{}
	}
	if b.Characters == nil {
		b.Characters = map[string]string{}
	}
	if b.Voice == "" {
		b.Voice = DefaultVoice
	}
	if b.LastScene == "" {
		b.LastScene = defaultLastScene
	}
	return b, nil
}

// ---------------------------------------------------------------------
// Name and decision hygiene
// ---------------------------------------------------------------------

var characterNameRe = regexp.MustCompile(`^[A-Za-zÁÉÍÓÚÑáéíóúñ' -]+$`)

// Single tokens that are never character names: pronouns, articles and the
// structural noise that leaks through capitalization heuristics.
var nonCharacterSingleWords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"el", "la", "los", "las", "un", "una", "unos", "unas",
		"yo", "tu", "mi", "mis", "me", "nos", "nosotros", "nosotras",
		"ella", "ellas", "ello", "ellos",
		"eso", "esto", "esa", "ese", "esas", "esos",
		"aqui", "alli", "antes", "despues",
		"estaba", "estaban", "era", "eran", "fue", "fueron", "es", "son",
		"the", "she", "him", "her", "his", "they", "them", "this", "that",
		"then", "when", "while", "there", "here",
		"texto", "original", "chunk", "capitulo", "chapter", "scene",
	} {
		nonCharacterSingleWords[w] = struct{}{}
	}
}

func isValidCharacterName(name string) bool {
	candidate := strings.TrimSpace(name)
	if len(candidate) < 2 || len(candidate) > 80 {
		return false
	}
	if !characterNameRe.MatchString(candidate) {
		return false
	}

	tokens := strings.Fields(candidate)
	if len(tokens) == 0 {
		return false
	}
	if len(tokens) == 1 {
		if _, bad := nonCharacterSingleWords[foldAccents(tokens[0])]; bad {
			return false
		}
	}

	// At least one word must look like a proper noun.
	for _, token := range tokens {
		r := []rune(token)[0]
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

// foldAccents lowercases and strips combining marks so "Andrés" and
// "andres" normalize identically.
func foldAccents(value string) string {
	decomposed := norm.NFKD.String(value)
	var sb strings.Builder
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		sb.WriteRune(unicode.ToLower(r))
	}
	return strings.TrimSpace(sb.String())
}

func truncateText(text string, maxChars int) string {
	cleaned := strings.Join(strings.Fields(text), " ")
	runes := []rune(cleaned)
	if len(runes) <= maxChars {
		return cleaned
	}
	return strings.TrimRight(string(runes[:maxChars-1]), " ") + "…"
}

func cleanDecision(decision string) string {
	cleaned := strings.Join(strings.Fields(decision), " ")
	if cleaned == "" {
		return ""
	}
	return truncateText(cleaned, maxDecisionChars)
}

var decisionNoiseRe = regexp.MustCompile(`[^\p{L}\p{N} ]+`)

func normalizeDecision(decision string) string {
	text := strings.ToLower(strings.TrimSpace(decision))
	text = strings.Join(strings.Fields(text), " ")
	return decisionNoiseRe.ReplaceAllString(text, "")
}

// isNewDecision suppresses exact and near duplicates so the decisions list
// does not fill up with rephrasings of the same rule.
func isNewDecision(candidate string, existing []string) bool {
	normalized := normalizeDecision(candidate)
	if normalized == "" {
		return false
	}
	for _, current := range existing {
		currNorm := normalizeDecision(current)
		if normalized == currNorm {
			return false
		}
		if diceSimilarity(normalized, currNorm) >= 0.84 {
			return false
		}
	}
	return true
}

// diceSimilarity is the Sørensen–Dice coefficient over character bigrams,
// a cheap stand-in for sequence-ratio similarity.
func diceSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	ba, bb := bigrams(a), bigrams(b)
	if len(ba) == 0 || len(bb) == 0 {
		return 0.0
	}
	overlap := 0
	for g, n := range ba {
		if m, ok := bb[g]; ok {
			if m < n {
				overlap += m
			} else {
				overlap += n
			}
		}
	}
	total := 0
	for _, n := range ba {
		total += n
	}
	for _, n := range bb {
		total += n
	}
	return 2.0 * float64(overlap) / float64(total)
}

func bigrams(s string) map[string]int {
	runes := []rune(s)
	grams := map[string]int{}
	for i := 0; i+1 < len(runes); i++ {
		grams[string(runes[i:i+2])]++
	}
	return grams
}
