package bible

import (
	"strings"
	"testing"
)

func TestExtractCharacterMentions_SpeechContext(t *testing.T) {
	text := `Lucía dijo que no volvería. Nadie respondió al principio, pero Lucía insistió.`

	got := ExtractCharacterMentions(text, "", 0, nil)
	if _, ok := got["Lucía"]; !ok {
		t.Errorf("name with speech context should be detected, got %v", got)
	}
	if got["Lucía"] != GenericCharacterDescription {
		t.Errorf("local detection must use the placeholder description, got %q", got["Lucía"])
	}
}

func TestExtractCharacterMentions_ActionContext(t *testing.T) {
	text := `El viento cerró la puerta. Andrés miró hacia el camino y después Andrés entró sin prisa.`

	got := ExtractCharacterMentions(text, "", 0, nil)
	if _, ok := got["Andrés"]; !ok {
		t.Errorf("name with action context should be detected, got %v", got)
	}
}

func TestExtractCharacterMentions_TitleContext(t *testing.T) {
	text := `Todos esperaban al señor Valdés junto a la puerta, aunque el señor Valdés nunca llegaba temprano.`

	got := ExtractCharacterMentions(text, "", 0, nil)
	if _, ok := got["Valdés"]; !ok {
		t.Errorf("titled name should be detected, got %v", got)
	}
}

func TestExtractCharacterMentions_SentenceStartNoise(t *testing.T) {
	// "Entonces" and "Cuando" only appear capitalized at sentence starts and
	// carry no character context.
	text := `Entonces llegó la lluvia. Cuando pasó, el campo quedó en silencio. Entonces todo volvió a empezar.`

	got := ExtractCharacterMentions(text, "", 0, nil)
	if len(got) != 0 {
		t.Errorf("sentence-start capitalization must not produce characters: %v", got)
	}
}

func TestExtractCharacterMentions_GenitiveOnlyRejected(t *testing.T) {
	// A name only ever used after "de" with no direct context is a place.
	text := `Los ejecutivos de Tempesta llegaron al alba. Los guardias de Tempesta cerraron las puertas.`

	got := ExtractCharacterMentions(text, "", 0, nil)
	if _, ok := got["Tempesta"]; ok {
		t.Errorf("genitive-only name should be rejected as a place: %v", got)
	}
}

func TestExtractCharacterMentions_KnownAlwaysKept(t *testing.T) {
	known := map[string]string{"María": "sarcastic innkeeper"}
	text := `De pronto apareció María.`

	got := ExtractCharacterMentions(text, "", 0, known)
	if _, ok := got["María"]; !ok {
		t.Errorf("known character must survive regardless of evidence: %v", got)
	}
}

func TestExtractCharacterMentions_CanonicalSpelling(t *testing.T) {
	known := map[string]string{"Andrés": "quiet blacksmith"}
	// The translation drops the accent; the canonical spelling must win.
	got := ExtractCharacterMentions("Andrés miró el mar.", "Andres looked at the sea.", 0, known)

	if _, ok := got["Andrés"]; !ok {
		t.Errorf("canonical spelling lost: %v", got)
	}
	for name := range got {
		if strings.EqualFold(name, "andres") && name != "Andrés" {
			t.Errorf("accentless variant leaked through: %q", name)
		}
	}
}

func TestExtractCharacterMentions_CapAndRanking(t *testing.T) {
	var sb strings.Builder
	names := []string{"Aurora", "Benito", "Camila", "Darío"}
	for _, n := range names {
		sb.WriteString("La gente escuchaba mientras " + n + " dijo la verdad y " + n + " miró al frente. ")
	}

	got := ExtractCharacterMentions(sb.String(), "", 2, nil)
	if len(got) > 2 {
		t.Errorf("cap not honored: %v", got)
	}
}

func TestExtractCharacterMentions_Empty(t *testing.T) {
	got := ExtractCharacterMentions("", "", 0, nil)
	if len(got) != 0 {
		t.Errorf("empty input should yield no candidates: %v", got)
	}
}
