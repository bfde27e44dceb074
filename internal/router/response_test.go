package router

import (
	"strings"
	"testing"
)

func TestParseResponse_DirectJSON(t *testing.T) {
	raw := `{"notes": "straightforward", "confidence": 0.92, "translation": "Hola mundo"}`
	got := ParseResponse(raw, "test-model")

	if got.Translation != "Hola mundo" {
		t.Errorf("Translation = %q", got.Translation)
	}
	if got.Confidence != 0.92 {
		t.Errorf("Confidence = %v", got.Confidence)
	}
	if got.Notes != "straightforward" {
		t.Errorf("Notes = %q", got.Notes)
	}
}

func TestParseResponse_MarkdownFence(t *testing.T) {
	raw := "Here is the result:\n```json\n{\"translation\": \"Hola\", \"confidence\": 0.8, \"notes\": \"ok\"}\n```\nDone."
	got := ParseResponse(raw, "test-model")

	if got.Translation != "Hola" {
		t.Errorf("Translation = %q", got.Translation)
	}
	if got.Confidence != 0.8 {
		t.Errorf("Confidence = %v", got.Confidence)
	}
}

func TestParseResponse_BareFence(t *testing.T) {
	raw := "```\n{\"translation\": \"Hola\", \"confidence\": 0.7, \"notes\": \"ok\"}\n```"
	got := ParseResponse(raw, "test-model")

	if got.Translation != "Hola" {
		t.Errorf("Translation = %q", got.Translation)
	}
}

func TestParseResponse_EmbeddedObject(t *testing.T) {
	raw := `The model decided to reply like this {"translation": "Adiós", "confidence": 0.6, "notes": "n"} hope that helps`
	got := ParseResponse(raw, "test-model")

	if got.Translation != "Adiós" {
		t.Errorf("Translation = %q", got.Translation)
	}
	if got.Confidence != 0.6 {
		t.Errorf("Confidence = %v", got.Confidence)
	}
}

func TestParseResponse_BracesInsideStrings(t *testing.T) {
	raw := `prefix {"translation": "uses { and } inside", "confidence": 0.9, "notes": "braces"} suffix`
	got := ParseResponse(raw, "test-model")

	if got.Translation != "uses { and } inside" {
		t.Errorf("Translation = %q", got.Translation)
	}
}

func TestParseResponse_EmergencyFallback(t *testing.T) {
	raw := "This is just prose with no JSON at all."
	got := ParseResponse(raw, "broken-model")

	if got.Translation != raw {
		t.Errorf("emergency fallback should keep the raw text, got %q", got.Translation)
	}
	if got.Confidence != 0.3 {
		t.Errorf("Confidence = %v, want 0.3", got.Confidence)
	}
	if !strings.Contains(got.Notes, "broken-model") {
		t.Errorf("Notes should name the model: %q", got.Notes)
	}
}

func TestParseResponse_AlternateKeys(t *testing.T) {
	raw := `{"text": "Hola", "note": "alt keys"}`
	got := ParseResponse(raw, "test-model")

	if got.Translation != "Hola" {
		t.Errorf("Translation = %q", got.Translation)
	}
	if got.Notes != "alt keys" {
		t.Errorf("Notes = %q", got.Notes)
	}
	if got.Confidence != 0.5 {
		t.Errorf("missing confidence should default to 0.5, got %v", got.Confidence)
	}
}

func TestParseResponse_ResultKey(t *testing.T) {
	raw := `{"result": "Hola"}`
	got := ParseResponse(raw, "test-model")
	if got.Translation != "Hola" {
		t.Errorf("Translation = %q", got.Translation)
	}
	if got.Notes != "No notes." {
		t.Errorf("Notes = %q", got.Notes)
	}
}

func TestParseResponse_ConfidenceClamping(t *testing.T) {
	cases := []struct {
		raw  string
		want float64
	}{
		{`{"translation": "x", "confidence": -0.4}`, 0},
		{`{"translation": "x", "confidence": 3.2}`, 1},
		{`{"translation": "x", "confidence": "0.85"}`, 0.85},
		{`{"translation": "x", "confidence": "not a number"}`, 0.5},
	}
	for _, c := range cases {
		got := ParseResponse(c.raw, "test-model")
		if got.Confidence != c.want {
			t.Errorf("ParseResponse(%s).Confidence = %v, want %v", c.raw, got.Confidence, c.want)
		}
	}
}
