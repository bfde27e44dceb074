package bible

import (
	"regexp"
	"strings"
)

// Local character detection. Capitalization alone is far too noisy, so every
// candidate needs contextual evidence: a speech or action verb next to the
// name, a title in front of it, or repeated mid-sentence appearances.
// Already-known characters are always kept, whatever the new evidence. The
// heuristic accepts false negatives; the AI extractor catches those later.

const defaultMaxCandidates = 6

var nameRe = regexp.MustCompile(`[A-ZÁÉÍÓÚÑ][a-záéíóúñ]{2,}`)

var speechVerbs = []string{
	// Spanish
	"dijo", "dijeron", "preguntó", "pregunto", "respondió", "respondio",
	"gritó", "grito", "susurró", "susurro", "murmuró", "murmuro",
	"exclamó", "exclamo", "añadió", "anadio",
	// English
	"said", "asked", "replied", "answered", "shouted", "whispered",
	"muttered", "exclaimed", "added",
}

var actionVerbs = []string{
	// Spanish
	"miró", "miro", "sonrió", "sonrio", "asintió", "asintio",
	"avanzó", "avanzo", "atacó", "ataco", "corrió", "corrio",
	"pensó", "penso", "ordenó", "ordeno", "entró", "entro", "salió", "salio",
	// English
	"looked", "smiled", "nodded", "walked", "ran", "thought",
	"turned", "entered", "left", "stood", "sat",
}

var titleHints = []string{
	"señor", "señora", "sr", "sra", "sir", "lady", "lord", "mr", "mrs", "miss", "dr",
	"rey", "reina", "príncipe", "principe", "princesa", "king", "queen", "prince", "princess",
	"general", "capitán", "capitan", "captain", "doctor", "doctora",
}

// "de/del/of" before a name marks genitive use: "executives of Tempest",
// "rey del Norte" marks a place or organization, not a person.
var genitivePrepositions = map[string]struct{}{
	"de": {}, "del": {}, "of": {},
}

var (
	speechVerbSet = foldSet(speechVerbs)
	actionVerbSet = foldSet(actionVerbs)
	titleHintSet  = foldSet(titleHints)
)

// Capitalized words that are never individual characters: group titles,
// spelled-out numbers, common sentence openers.
var nonCharacterWords = foldSet([]string{
	"el", "la", "los", "las", "un", "una", "de", "del", "al", "en", "por",
	"para", "con", "sin", "ella", "ellas", "ello", "ellos", "eso", "esto",
	"esta", "este", "antes", "despues", "cuando", "mientras", "aunque",
	"porque", "pero", "como", "que", "entonces", "asi", "todavia", "bueno",
	"luego", "ahora", "estaba", "era", "fue", "es", "son",
	"the", "and", "but", "then", "when", "while", "because", "although",
	"she", "they", "his", "her", "him", "there", "here", "this", "that",
	"señor", "senor", "sala", "control", "centro", "verdad",
	"guardianes", "guardian", "guerreros", "guerrero", "soldados", "soldado",
	"angeles", "angel", "generales", "lideres", "ejercito", "ejercitos",
	"doce", "siete", "tres", "diez", "cinco", "seis", "ocho", "nueve", "once",
})

func foldSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[foldAccents(w)] = struct{}{}
	}
	return set
}

type candidateStats struct {
	occurrences       int
	speechHits        int
	actionHits        int
	titleHits         int
	sentenceStartHits int
	genitiveHits      int
	firstIndex        int
}

// ExtractCharacterMentions scans original and translated text for character
// candidates and returns up to maxCharacters of them, each mapped to the
// generic placeholder description. known entries are preserved under their
// canonical spelling.
func ExtractCharacterMentions(sourceText, translatedText string, maxCharacters int, known map[string]string) map[string]string {
	if maxCharacters <= 0 {
		maxCharacters = defaultMaxCandidates
	}
	combined := strings.TrimSpace(sourceText + "\n" + translatedText)
	if combined == "" {
		return map[string]string{}
	}

	knownByNorm := make(map[string]string, len(known))
	for name := range known {
		knownByNorm[foldAccents(name)] = name
	}

	statsByNorm := map[string]*candidateStats{}
	displayByNorm := map[string]string{}

	for _, loc := range nameRe.FindAllStringIndex(combined, -1) {
		rawName := combined[loc[0]:loc[1]]
		normName := foldAccents(rawName)

		stats, ok := statsByNorm[normName]
		if !ok {
			stats = &candidateStats{firstIndex: loc[0]}
			statsByNorm[normName] = stats
		}
		stats.occurrences++
		if loc[0] < stats.firstIndex {
			stats.firstIndex = loc[0]
		}

		if isSentenceStart(combined, loc[0]) {
			stats.sentenceStartHits++
		}
		if hasSpeechContext(combined, loc[0], loc[1]) {
			stats.speechHits++
		}
		if hasActionContext(combined, loc[1]) {
			stats.actionHits++
		}
		if hasTitleContext(combined, loc[0]) {
			stats.titleHits++
		}
		if hasGenitiveContext(combined, loc[0]) {
			stats.genitiveHits++
		}

		if canonical, ok := knownByNorm[normName]; ok {
			displayByNorm[normName] = canonical
		} else if _, ok := displayByNorm[normName]; !ok {
			displayByNorm[normName] = rawName
		}
	}

	type rankedCandidate struct {
		score       int
		occurrences int
		firstIndex  int
		name        string
	}
	var ranked []rankedCandidate

	for normName, stats := range statsByNorm {
		display := displayByNorm[normName]

		if _, ok := knownByNorm[normName]; ok {
			ranked = append(ranked, rankedCandidate{100 + stats.occurrences, stats.occurrences, stats.firstIndex, display})
			continue
		}
		if _, bad := nonCharacterWords[normName]; bad {
			continue
		}
		if _, isVerb := speechVerbSet[normName]; isVerb {
			continue
		}
		if _, isVerb := actionVerbSet[normName]; isVerb {
			continue
		}

		hasDirectContext := stats.speechHits > 0 || stats.actionHits > 0 || stats.titleHits > 0

		// A name that only ever appears after a genitive preposition and has
		// no direct character context is a place or organization.
		if !hasDirectContext && stats.genitiveHits >= stats.occurrences {
			continue
		}

		score := scoreCandidate(stats)
		repeatedWithBodyContext := stats.occurrences >= 2 && stats.sentenceStartHits < stats.occurrences

		if score >= 2 && (hasDirectContext || repeatedWithBodyContext) {
			ranked = append(ranked, rankedCandidate{score, stats.occurrences, stats.firstIndex, display})
		}
	}

	// Higher score first; break ties by frequency, then earliest appearance.
	for i := 1; i < len(ranked); i++ {
		for j := i; j > 0; j-- {
			a, b := ranked[j-1], ranked[j]
			if b.score > a.score ||
				(b.score == a.score && b.occurrences > a.occurrences) ||
				(b.score == a.score && b.occurrences == a.occurrences && b.firstIndex < a.firstIndex) {
				ranked[j-1], ranked[j] = ranked[j], ranked[j-1]
			} else {
				break
			}
		}
	}

	selected := map[string]string{}
	for _, c := range ranked {
		if _, ok := selected[c.name]; !ok {
			selected[c.name] = GenericCharacterDescription
		}
		if len(selected) >= maxCharacters {
			break
		}
	}
	return selected
}

func scoreCandidate(stats *candidateStats) int {
	score := stats.occurrences
	if score > 3 {
		score = 3
	}
	score += stats.speechHits * 3
	score += stats.actionHits * 3
	score += stats.titleHits * 2

	// Names only ever seen at sentence starts are usually just capitalization.
	if stats.occurrences == stats.sentenceStartHits {
		score -= 2
	}
	return score
}

func isSentenceStart(text string, index int) bool {
	i := index - 1
	for i >= 0 && isSpaceByte(text[i]) {
		i--
	}
	if i < 0 {
		return true
	}
	switch text[i] {
	case '.', '!', '?', '\n':
		return true
	}
	return false
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n'
}

func hasSpeechContext(text string, start, end int) bool {
	before := lastWord(text[maxInt(0, start-42):start])
	if _, ok := speechVerbSet[foldAccents(before)]; ok {
		return true
	}
	after := firstWord(text[end:minInt(len(text), end+42)])
	_, ok := speechVerbSet[foldAccents(after)]
	return ok
}

func hasActionContext(text string, end int) bool {
	after := firstWord(text[end:minInt(len(text), end+24)])
	_, ok := actionVerbSet[foldAccents(after)]
	return ok
}

func hasTitleContext(text string, start int) bool {
	before := lastWord(text[maxInt(0, start-20):start])
	if before == "" {
		return false
	}
	_, ok := titleHintSet[foldAccents(strings.TrimRight(before, "."))]
	return ok
}

func hasGenitiveContext(text string, start int) bool {
	before := lastWord(text[maxInt(0, start-25):start])
	if before == "" {
		return false
	}
	_, ok := genitivePrepositions[foldAccents(before)]
	return ok
}

var wordRe = regexp.MustCompile(`[\p{L}]+\.?`)

func lastWord(s string) string {
	words := wordRe.FindAllString(s, -1)
	if len(words) == 0 {
		return ""
	}
	return words[len(words)-1]
}

func firstWord(s string) string {
	return wordRe.FindString(s)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
