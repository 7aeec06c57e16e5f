package dialog

import (
	"strings"
	"unicode"

	"github.com/elliotchance/pie/v2"
)

var DefaultOptOutPhrases = []string{
	"стоп",
	"не пишите",
	"не беспокойте",
	"не звоните",
	"отпишите",
	"удалите мой номер",
	"не интересно",
	"неинтересно",
	"не сдаю",
	"уже сдал",
	"stop",
	"unsubscribe",
}

var DefaultPausePhrases = []string{
	"подождите",
	"погодите",
	"не сейчас",
	"позже",
	"я занят",
	"я занята",
	"wait",
	"not now",
	"later",
}

// Phrases holds the hard-coded phrase lists checked on raw text before any
// statistical classification.
type Phrases struct {
	optOut []string
	pause  []string
}

// NewPhrases falls back to the defaults for an empty list.
func NewPhrases(optOut, pause []string) Phrases {
	if len(optOut) == 0 {
		optOut = DefaultOptOutPhrases
	}
	if len(pause) == 0 {
		pause = DefaultPausePhrases
	}

	return Phrases{
		optOut: pie.Map(optOut, normalizePhrase),
		pause:  pie.Map(pause, normalizePhrase),
	}
}

func (p Phrases) OptOut(text string) bool {
	return containsAny(normalizePhrase(text), p.optOut)
}

func (p Phrases) Pause(text string) bool {
	return containsAny(normalizePhrase(text), p.pause)
}

// containsAny matches whole words only: "стоп" is found in "стоп, не пишите"
// but not in "стопроцентно".
func containsAny(text string, phrases []string) bool {
	padded := " " + text + " "

	return pie.Any(phrases, func(phrase string) bool {
		return phrase != "" && strings.Contains(padded, " "+phrase+" ")
	})
}

// normalizePhrase lowercases s and reduces it to space separated words.
func normalizePhrase(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "ё", "е")

	words := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	return strings.Join(words, " ")
}
