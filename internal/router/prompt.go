package router

import (
	"fmt"
	"sort"
	"strings"
)

// PromptContext carries the compressed book bible slice that shapes the
// system prompt for one chunk.
type PromptContext struct {
	SourceLang string
	TargetLang string
	Voice      string
	Decisions  []string
	Glossary   map[string]string
	Characters map[string]string
	LastScene  string
}

// Fallbacks keep every prompt section non-empty. Models follow instructions
// better when no section is blank.
const (
	defaultVoice     = "third-person narrator, past tense"
	emptyGlossary    = "No glossary yet. Extract relevant terms as you find them."
	emptyDecisions   = "None yet. This is the first fragment."
	emptyCharacters  = "No profiles defined yet. Infer each character's tone from the text."
	emptyLastScene   = "Start of the book. No prior context."
	emptyChunkMarker = "[EMPTY]"
)

const translateSystem = `You are an expert literary editor and translator. Your goal is to translate the fragment you receive while faithfully keeping the author's tone, rhythm and stylistic nuances, without omitting or summarizing any original sentence.

--- WORK CONTEXT ---
- Source language: %s
- Target language: %s
- Overall narrative voice: %s

--- BOOK BIBLE (strict, unbreakable rules) ---

GLOSSARY (terms with a fixed translation, do NOT alter):
%s

STYLE DECISIONS (apply without exception):
%s

CHARACTERS (tone and personality for dialogue):
%s

--- CONTINUITY ---
Immediately previous scene: %s

--- OUTPUT INSTRUCTIONS ---
Respond ONLY with a valid JSON object.
For maximum quality, first analyze the challenges of the text, then assign your confidence level, and finally deliver the translation.

Strict JSON structure:
{
"notes": "Analyze the fragment's challenges (idioms, tone, slang) and document the translation decisions taken. Never leave this empty.",
"confidence": 0.0,
"translation": "The complete translated text, keeping the original's paragraphs and line breaks."
}

JSON rules:
- "notes" comes first. It is your reasoning process before translating.
- "confidence": float between 0.0 and 1.0.
    * 1.0 = direct translation with no loss of nuance.
    * < 0.75 = ambiguity, several valid options, or complex idiomatic expressions.
- Do not omit or summarize any sentence of the original fragment.
- If you use a markdown block, its contents must be valid, parseable JSON.`

const fixSystem = `You are an expert literary editor and translator. You will receive an original fragment together with an existing draft translation. Produce a corrected translation: fix mistranslations, omissions, awkward phrasing and glossary violations while keeping everything the draft already gets right.

--- WORK CONTEXT ---
- Source language: %s
- Target language: %s
- Overall narrative voice: %s

--- BOOK BIBLE (strict, unbreakable rules) ---

GLOSSARY (terms with a fixed translation, do NOT alter):
%s

STYLE DECISIONS (apply without exception):
%s

CHARACTERS (tone and personality for dialogue):
%s

--- CONTINUITY ---
Immediately previous scene: %s

--- OUTPUT INSTRUCTIONS ---
Respond ONLY with a valid JSON object:
{
"notes": "List the concrete problems found in the draft and how you fixed them. Never leave this empty.",
"confidence": 0.0,
"translation": "The fully corrected translation, keeping the original's paragraphs and line breaks."
}

JSON rules:
- "confidence": float between 0.0 and 1.0, where < 0.75 means the fragment kept real ambiguity.
- Preserve every sentence of the original. Do not summarize.
- If you use a markdown block, its contents must be valid, parseable JSON.`

const polishSystem = `You are an expert literary editor working in %s. You will receive an existing translation with no access to the original. Polish it: smooth awkward phrasing, fix grammar and agreement errors, and enforce the book bible, while changing as little meaning as possible.

--- WORK CONTEXT ---
- Target language: %s
- Overall narrative voice: %s

--- BOOK BIBLE (strict, unbreakable rules) ---

GLOSSARY (terms with a fixed translation, do NOT alter):
%s

STYLE DECISIONS (apply without exception):
%s

CHARACTERS (tone and personality for dialogue):
%s

--- CONTINUITY ---
Immediately previous scene: %s

--- OUTPUT INSTRUCTIONS ---
Respond ONLY with a valid JSON object:
{
"notes": "List the style problems found and how you fixed them. Never leave this empty.",
"confidence": 0.0,
"translation": "The polished text, keeping paragraphs and line breaks."
}

JSON rules:
- "confidence": float between 0.0 and 1.0, where < 0.75 means passages remained genuinely unclear.
- Never invent content the draft does not contain.
- If you use a markdown block, its contents must be valid, parseable JSON.`

// BuildTranslatePrompt builds the system prompt for translate mode. The
// chunk itself travels as the user message, keeping instructions separate
// from content.
func BuildTranslatePrompt(pc PromptContext) string {
	return fmt.Sprintf(translateSystem,
		pc.SourceLang, pc.TargetLang,
		voiceOrDefault(pc.Voice),
		formatGlossary(pc.Glossary),
		formatDecisions(pc.Decisions),
		formatCharacters(pc.Characters),
		lastSceneOrDefault(pc.LastScene),
	)
}

// BuildFixPrompt builds the system prompt for fix mode, where the user
// message pairs the original with the existing draft.
func BuildFixPrompt(pc PromptContext) string {
	return fmt.Sprintf(fixSystem,
		pc.SourceLang, pc.TargetLang,
		voiceOrDefault(pc.Voice),
		formatGlossary(pc.Glossary),
		formatDecisions(pc.Decisions),
		formatCharacters(pc.Characters),
		lastSceneOrDefault(pc.LastScene),
	)
}

// BuildPolishPrompt builds the system prompt for fix-style mode, which only
// sees the draft translation.
func BuildPolishPrompt(pc PromptContext) string {
	return fmt.Sprintf(polishSystem,
		pc.TargetLang, pc.TargetLang,
		voiceOrDefault(pc.Voice),
		formatGlossary(pc.Glossary),
		formatDecisions(pc.Decisions),
		formatCharacters(pc.Characters),
		lastSceneOrDefault(pc.LastScene),
	)
}

// BuildFixPayload is the user message for fix mode: original and draft in
// explicitly tagged blocks so any model can tell them apart.
func BuildFixPayload(sourceChunk, draftChunk, sourceLang, targetLang string) string {
	source := strings.TrimSpace(sourceChunk)
	if source == "" {
		source = emptyChunkMarker
	}
	draft := strings.TrimSpace(draftChunk)
	if draft == "" {
		draft = emptyChunkMarker
	}
	return fmt.Sprintf(
		"ORIGINAL TEXT (%s):\n<original>\n%s\n</original>\n\nEXISTING TRANSLATION (%s):\n<existing_translation>\n%s\n</existing_translation>",
		sourceLang, source, targetLang, draft,
	)
}

// BuildPolishPayload is the user message for fix-style mode.
func BuildPolishPayload(draftChunk, targetLang string) string {
	draft := strings.TrimSpace(draftChunk)
	if draft == "" {
		draft = emptyChunkMarker
	}
	return fmt.Sprintf(
		"EXISTING TRANSLATION (%s):\n<existing_translation>\n%s\n</existing_translation>",
		targetLang, draft,
	)
}

func voiceOrDefault(voice string) string {
	if strings.TrimSpace(voice) == "" {
		return defaultVoice
	}
	return voice
}

func lastSceneOrDefault(scene string) string {
	if strings.TrimSpace(scene) == "" {
		return emptyLastScene
	}
	return scene
}

func formatGlossary(glossary map[string]string) string {
	if len(glossary) == 0 {
		return emptyGlossary
	}
	var sb strings.Builder
	for _, term := range sortedMapKeys(glossary) {
		fmt.Fprintf(&sb, "  - %s -> %s\n", term, glossary[term])
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatDecisions(decisions []string) string {
	if len(decisions) == 0 {
		return emptyDecisions
	}
	var sb strings.Builder
	for _, d := range decisions {
		fmt.Fprintf(&sb, "  - %s\n", d)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatCharacters(characters map[string]string) string {
	if len(characters) == 0 {
		return emptyCharacters
	}
	var sb strings.Builder
	for _, name := range sortedMapKeys(characters) {
		fmt.Fprintf(&sb, "  - %s: %s\n", name, characters[name])
	}
	return strings.TrimRight(sb.String(), "\n")
}

func sortedMapKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
