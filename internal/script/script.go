// Package script compares a speech transcript with the text the donor was
// asked to read.
package script

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/alkime/voicebank/internal/validate"
	"github.com/antzucaro/matchr"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxSentenceEdits is the largest word-level edit distance a sentence
// transcript may have and still match.
const MaxSentenceEdits = 2

// ReasonNotHeard is reported when the transcript is empty.
const ReasonNotHeard = "speech was not heard clearly, please record again"

// wordRuneBase is the start of the Unicode private use area. Words are mapped
// onto it so matchr's rune-level Levenshtein counts whole-word edits.
const wordRuneBase = 0xE000

// Normalize lowercases, strips diacritics and punctuation, trims and
// collapses whitespace. Apostrophes are dropped so contractions stay one word.
func Normalize(s string) string {
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		runes.Map(foldStroke),
		runes.Remove(runes.Predicate(isApostrophe)),
		runes.Map(punctToSpace),
		norm.NFC,
	)

	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}

	return strings.Join(strings.Fields(strings.ToLower(stripped)), " ")
}

func isApostrophe(r rune) bool {
	return r == '\'' || r == '’' || r == 'ʼ'
}

func punctToSpace(r rune) rune {
	if unicode.IsPunct(r) || unicode.IsSymbol(r) {
		return ' '
	}
	return r
}

// foldStroke maps letters whose diacritic has no Unicode decomposition.
func foldStroke(r rune) rune {
	switch r {
	case 'đ':
		return 'd'
	case 'Đ':
		return 'D'
	case 'ł':
		return 'l'
	case 'Ł':
		return 'L'
	case 'ø':
		return 'o'
	case 'Ø':
		return 'O'
	}
	return r
}

// MatchKeyword accepts only an exact match after normalization.
func MatchKeyword(transcript, keyword string) validate.Outcome {
	got := Normalize(transcript)
	if got == "" {
		return validate.Reject(ReasonNotHeard)
	}

	if got != Normalize(keyword) {
		return validate.Reject(fmt.Sprintf("heard %q, please say the keyword %q", transcript, keyword))
	}

	return validate.Accept()
}

// MatchSentence accepts transcripts within MaxSentenceEdits word edits of
// the expected sentence.
func MatchSentence(transcript, sentence string) validate.Outcome {
	if Normalize(transcript) == "" {
		return validate.Reject(ReasonNotHeard)
	}

	if WordDistance(transcript, sentence) > MaxSentenceEdits {
		return validate.Reject(fmt.Sprintf("recording does not match the sentence, please read: %q", sentence))
	}

	return validate.Accept()
}

// WordDistance is the Levenshtein distance between the normalized word
// sequences of a and b.
func WordDistance(a, b string) int {
	wa := strings.Fields(Normalize(a))
	wb := strings.Fields(Normalize(b))

	alphabet := make(map[string]rune, len(wa)+len(wb))
	encode := func(words []string) string {
		var sb strings.Builder
		for _, w := range words {
			r, ok := alphabet[w]
			if !ok {
				r = rune(wordRuneBase + len(alphabet))
				alphabet[w] = r
			}
			sb.WriteRune(r)
		}
		return sb.String()
	}

	return matchr.Levenshtein(encode(wa), encode(wb))
}
