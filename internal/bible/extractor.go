package bible

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/librotran/librotran/internal/logging"
)

const defaultExtractEveryN = 5

// Model is the minimal surface the extractor needs from a translation
// backend. Decoupled from the router so tests can plug in a fake.
type Model interface {
	Translate(ctx context.Context, chunk, systemPrompt string) (string, error)
}

const extractionPrompt = `Analyze the original fragment and its translation. Extract only new information that must be remembered to keep the rest of the book consistent.

ORIGINAL FRAGMENT:
%s

TRANSLATION:
%s

TRANSLATOR NOTES:
%s

%sExtract:
0. Narrative voice: grammatical person (first/third), verb tense (past/present) and the narrator's main trait (e.g. "intimate and reflective", "epic and descriptive", "ironic and detached"). Example: "first-person narrator, past tense, intimate and contemplative tone".
1. Glossary of fictional-universe terms: abilities, techniques, races, special objects, unique titles and place names appearing in this fragment. Include EVERY relevant term with its established translation, even those deliberately left untranslated (e.g. "Void" -> "Void").
2. Characters: only named individuals (people, creatures, unique entities) that act, speak or carry narrative weight. Do NOT include places, kingdoms, organizations, groups or collective titles. For each character include gender (M/F/N), narrative role, speech style and personality. Format: "Gender: M | Role: protagonist | Speech: direct and friendly | Personality: optimistic, determined"
3. Pure style decisions (at most 3): conventions that are NOT glossary terms. Only the concrete: dialogue treatment, formality of address, special grammatical structures. Do NOT include technical terms (those go in glossary), generic remarks about voice or tone, or phrases with no clear future action. Valid example: "use informal address consistently in dialogue between protagonists".
4. A 2-sentence summary of what happened in this scene (for continuity).

Respond ONLY with valid JSON:
{
  "voice": "person, verb tense and main narrator trait",
  "glossary": {"original_term": "translated_term"},
  "characters": {"name": "Gender: M/F/N | Role: ... | Speech: ... | Personality: ..."},
  "rejected": ["name_that_is_not_a_character"],
  "decisions": ["concrete decision that must be kept"],
  "last_scene": "2-sentence summary of the scene"
}

If a category has nothing new, return an empty object/list for it.
Do not invent terms that do not appear in the fragment.`

const candidatesSection = `AUTOMATICALLY DETECTED CHARACTER CANDIDATES:
%s

For the "characters" section: review each candidate above.
- If it is a real individual (a character that acts, speaks or carries narrative weight): include it with the format "Gender: M/F/N | Role: ... | Speech: ... | Personality: ..."
- If it is a place, organization, group, collective title or an ordinary capitalized word (That, The, Time, Dragon, Lord...): do NOT include it in "characters". Put it in "rejected".
Also add any new character you find in the fragment that is not listed.

`

// Nested objects in the payload mean the non-greedy variant breaks, so both
// patterns match greedily.
var (
	fencedJSONRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*\\})\\s*```")
	bareJSONRe   = regexp.MustCompile(`(?s)\{.*\}`)
)

// Extractor asks the model what a freshly translated chunk adds to the book
// bible. It only proposes an Update; applying it is the caller's call.
// Extraction is best effort and never surfaces an error: a failed call or an
// unparseable response leaves the bible unchanged.
type Extractor struct {
	model         Model
	extractEveryN int
	sinceLast     int
}

func NewExtractor(model Model) *Extractor {
	return &Extractor{model: model, extractEveryN: defaultExtractEveryN}
}

// ShouldExtract reports whether this chunk warrants a model call. Always true
// for the first chunk, when forced (new local candidates need enrichment),
// when the translator notes mention new terms or characters, or when
// extractEveryN chunks have passed since the last extraction.
func (e *Extractor) ShouldExtract(chunkIndex int, notes string, force bool) bool {
	if chunkIndex == 0 || force {
		return true
	}

	notesLower := strings.ToLower(notes)
	for _, keyword := range []string{
		"nuevo", "new", "término", "term",
		"personaje", "character", "nombre", "name",
		"decisión", "decision",
	} {
		if strings.Contains(notesLower, keyword) {
			return true
		}
	}

	e.sinceLast++
	return e.sinceLast >= e.extractEveryN
}

// Extract runs the extraction prompt over a translated chunk and returns the
// proposed Update, or nil when extraction is skipped or fails. Candidates
// from the local detector are passed to the model for validation.
func (e *Extractor) Extract(ctx context.Context, original, translation, notes string, chunkIndex int, candidates map[string]string, force bool) *Update {
	if !e.ShouldExtract(chunkIndex, notes, force) {
		return nil
	}

	if notes == "" {
		notes = "No notes."
	}
	prompt := fmt.Sprintf(extractionPrompt, original, translation, notes, buildCandidatesSection(candidates))

	raw, err := e.model.Translate(ctx, prompt, "")
	if err != nil {
		log := logging.With("bible.extractor")
		log.Warn().
			Int("chunk_index", chunkIndex).
			Err(err).
			Msg("extraction call failed, bible unchanged")
		return nil
	}
	e.sinceLast = 0

	return e.parseUpdate(raw)
}

func (e *Extractor) parseUpdate(raw string) *Update {
	data := tryParseJSON(strings.TrimSpace(raw))
	if data == nil {
		log := logging.With("bible.extractor")
		log.Warn().Msg("unparseable extraction response, bible unchanged")
		return &Update{}
	}

	return &Update{
		Voice:      strings.TrimSpace(stringValue(data["voice"])),
		Glossary:   safeStringMap(data["glossary"]),
		Characters: safeStringMap(data["characters"]),
		Decisions:  safeStringSlice(data["decisions"]),
		LastScene:  strings.TrimSpace(stringValue(data["last_scene"])),
		Rejected:   safeStringSlice(data["rejected"]),
	}
}

// tryParseJSON degrades gracefully: direct JSON, then a fenced markdown
// block, then the first object-looking region of the text.
func tryParseJSON(text string) map[string]any {
	var direct map[string]any
	if err := json.Unmarshal([]byte(text), &direct); err == nil {
		return direct
	}

	if m := fencedJSONRe.FindStringSubmatch(text); m != nil {
		var fenced map[string]any
		if err := json.Unmarshal([]byte(m[1]), &fenced); err == nil {
			return fenced
		}
	}

	if m := bareJSONRe.FindString(text); m != "" {
		var bare map[string]any
		if err := json.Unmarshal([]byte(m), &bare); err == nil {
			return bare
		}
	}

	return nil
}

func buildCandidatesSection(candidates map[string]string) string {
	if len(candidates) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, name := range sortedKeys(candidates) {
		sb.WriteString("  - ")
		sb.WriteString(name)
		sb.WriteString("\n")
	}
	return fmt.Sprintf(candidatesSection, strings.TrimRight(sb.String(), "\n"))
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func stringValue(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}

func safeStringMap(v any) map[string]string {
	raw, ok := v.(map[string]any)
	if !ok {
		return map[string]string{}
	}
	out := make(map[string]string, len(raw))
	for k, val := range raw {
		key := strings.TrimSpace(k)
		value := strings.TrimSpace(stringValue(val))
		if key != "" && value != "" {
			out[key] = value
		}
	}
	return out
}

func safeStringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s := strings.TrimSpace(stringValue(item))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
