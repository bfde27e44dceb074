package router

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/librotran/librotran/internal/logging"
)

type ParsedResponse struct {
	Translation string
	Confidence  float64
	Notes       string
}

var responseFencedRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// ParseResponse turns raw model output into a structured response with
// progressive degradation: direct JSON, then a fenced markdown block, then
// the first balanced JSON object anywhere in the text, and finally an
// emergency fallback where the full text becomes the translation at
// confidence 0.3. It never fails.
func ParseResponse(rawText, modelName string) ParsedResponse {
	log := logging.With("router.response")
	text := strings.TrimSpace(rawText)

	if data := tryUnmarshal(text); data != nil {
		return fillResponse(data)
	}

	if m := responseFencedRe.FindStringSubmatch(text); m != nil {
		if data := tryUnmarshal(m[1]); data != nil {
			log.Warn().Str("model", modelName).Msg("response wrapped in markdown fence")
			return fillResponse(data)
		}
	}

	if region := firstJSONObject(text); region != "" {
		if data := tryUnmarshal(region); data != nil {
			log.Warn().Str("model", modelName).Msg("response had extra text around JSON")
			return fillResponse(data)
		}
	}

	log.Error().Str("model", modelName).Msg("unparseable response, using raw text at low confidence")
	return ParsedResponse{
		Translation: text,
		Confidence:  0.3,
		Notes:       fmt.Sprintf("WARNING: unstructured response from %s. Needs manual review.", modelName),
	}
}

func tryUnmarshal(text string) map[string]any {
	var data map[string]any
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return nil
	}
	return data
}

// firstJSONObject finds the first balanced brace region, tracking string
// literals so braces inside values do not skew the depth count.
func firstJSONObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

func fillResponse(data map[string]any) ParsedResponse {
	translation := strings.TrimSpace(asString(data["translation"]))
	if translation == "" {
		translation = strings.TrimSpace(asString(data["text"]))
	}
	if translation == "" {
		translation = strings.TrimSpace(asString(data["result"]))
	}

	confidence := 0.5
	switch v := data["confidence"].(type) {
	case float64:
		confidence = v
	case string:
		var f float64
		if _, err := fmt.Sscanf(strings.TrimSpace(v), "%g", &f); err == nil {
			confidence = f
		}
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	notes := strings.TrimSpace(asString(data["notes"]))
	if notes == "" {
		notes = strings.TrimSpace(asString(data["note"]))
	}
	if notes == "" {
		notes = "No notes."
	}

	return ParsedResponse{Translation: translation, Confidence: confidence, Notes: notes}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
