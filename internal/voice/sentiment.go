package voice

import (
	"strings"
	"unicode"
)

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

var (
	positiveWords = []string{
		"oui", "d'accord", "parfait", "merci", "super", "excellent", "génial",
		"intéressé", "intéressée", "volontiers", "bien sûr", "avec plaisir", "ok",
		"confirme", "entendu", "très bien",
	}
	negativeWords = []string{
		"non", "pas intéressé", "pas intéressée", "arrêtez", "rappelez pas",
		"plus jamais", "dérangez", "déranger", "annuler", "pas le temps",
		"laissez-moi", "désabonner",
	}
	assistantPrefixes = []string{"ai:", "assistant:", "bot:"}
)

// AnalyzeSentiment counts keyword hits in what the customer said. Lines
// spoken by the assistant are ignored; a tie is neutral.
func AnalyzeSentiment(transcript string) Sentiment {
	pos, neg := 0, 0
	for _, line := range strings.Split(transcript, "\n") {
		text := strings.ToLower(strings.TrimSpace(line))
		if text == "" || spokenByAssistant(text) {
			continue
		}
		if i := strings.Index(text, ":"); i > 0 && !strings.ContainsAny(text[:i], " 0123456789") {
			text = text[i+1:]
		}
		pos += countPhrases(text, positiveWords, true)
		neg += countPhrases(text, negativeWords, false)
	}

	switch {
	case pos > neg:
		return SentimentPositive
	case neg > pos:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

func spokenByAssistant(line string) bool {
	for _, p := range assistantPrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

// countPhrases counts whole-word occurrences. With skipNegated a phrase
// directly preceded by "pas " is not counted, so "pas intéressé" only scores
// as negative.
func countPhrases(text string, phrases []string, skipNegated bool) int {
	n := 0
	for _, p := range phrases {
		n += countWord(text, p, skipNegated)
	}
	return n
}

func countWord(text, word string, skipNegated bool) int {
	n := 0
	for start := 0; ; {
		i := strings.Index(text[start:], word)
		if i < 0 {
			return n
		}
		i += start
		end := i + len(word)
		if boundary(text, i-1) && boundary(text, end) && !(skipNegated && negated(text, i)) {
			n++
		}
		start = end
	}
}

func boundary(text string, i int) bool {
	if i < 0 || i >= len(text) {
		return true
	}
	r := rune(text[i])
	return r < 0x80 && !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\'' && r != '-'
}

// negated reports a positive word directly preceded by "pas ".
func negated(text string, i int) bool {
	return strings.HasSuffix(text[:i], "pas ")
}
