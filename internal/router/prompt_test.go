package router

import (
	"strings"
	"testing"
)

func TestBuildTranslatePrompt_Fallbacks(t *testing.T) {
	prompt := BuildTranslatePrompt(PromptContext{SourceLang: "es", TargetLang: "en"})

	for _, want := range []string{defaultVoice, emptyGlossary, emptyDecisions, emptyCharacters, emptyLastScene} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing fallback section %q", want)
		}
	}
	if !strings.Contains(prompt, "Source language: es") || !strings.Contains(prompt, "Target language: en") {
		t.Error("prompt missing language pair")
	}
}

func TestBuildTranslatePrompt_BibleSections(t *testing.T) {
	pc := PromptContext{
		SourceLang: "es",
		TargetLang: "en",
		Voice:      "first-person, present tense",
		Glossary:   map[string]string{"bruja": "witch", "aldea": "village"},
		Decisions:  []string{"keep honorifics untranslated"},
		Characters: map[string]string{"María": "sarcastic, clipped sentences"},
		LastScene:  "María left the village at dawn.",
	}
	prompt := BuildTranslatePrompt(pc)

	if !strings.Contains(prompt, "first-person, present tense") {
		t.Error("voice not included")
	}
	// Glossary entries come out sorted by term.
	aldea := strings.Index(prompt, "aldea -> village")
	bruja := strings.Index(prompt, "bruja -> witch")
	if aldea < 0 || bruja < 0 || aldea > bruja {
		t.Errorf("glossary missing or unsorted: aldea=%d bruja=%d", aldea, bruja)
	}
	if !strings.Contains(prompt, "keep honorifics untranslated") {
		t.Error("decision not included")
	}
	if !strings.Contains(prompt, "María: sarcastic") {
		t.Error("character profile not included")
	}
	if !strings.Contains(prompt, "María left the village at dawn.") {
		t.Error("last scene not included")
	}
}

func TestBuildFixPayload(t *testing.T) {
	payload := BuildFixPayload("Hola mundo", "Hello wordl", "es", "en")

	if !strings.Contains(payload, "<original>\nHola mundo\n</original>") {
		t.Errorf("original block malformed: %q", payload)
	}
	if !strings.Contains(payload, "<existing_translation>\nHello wordl\n</existing_translation>") {
		t.Errorf("draft block malformed: %q", payload)
	}
	if !strings.Contains(payload, "ORIGINAL TEXT (es):") {
		t.Error("source language label missing")
	}
}

func TestBuildFixPayload_EmptyChunks(t *testing.T) {
	payload := BuildFixPayload("", "   ", "es", "en")
	if strings.Count(payload, emptyChunkMarker) != 2 {
		t.Errorf("empty sides should carry the marker: %q", payload)
	}
}

func TestBuildPolishPayload(t *testing.T) {
	payload := BuildPolishPayload("Texto a pulir", "es")
	if !strings.Contains(payload, "<existing_translation>\nTexto a pulir\n</existing_translation>") {
		t.Errorf("payload malformed: %q", payload)
	}
	if strings.Contains(payload, "<original>") {
		t.Error("polish payload must not carry an original block")
	}
}

func TestBuildPolishPrompt_TargetOnly(t *testing.T) {
	prompt := BuildPolishPrompt(PromptContext{SourceLang: "es", TargetLang: "fr"})
	if !strings.Contains(prompt, "working in fr") {
		t.Error("polish prompt should name the target language")
	}
}
