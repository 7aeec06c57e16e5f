package dialog

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

var (
	currencySuffixRe = regexp.MustCompile(`(?i)\s*(?:₽|руб(?:лей|ля|ль)?\.?|р\.|rub\.?)(?:\s|$)`)
	thousandRe       = regexp.MustCompile(`(?i)(\d{2,})(?:[,. ](\d{1,3}))?\s?(?:k|к|тыс(?:яч[аи]?)?\.?|т\.)(?:[^\p{L}]|$)`)
	groupedRe        = regexp.MustCompile(`\d{1,3}(?:[ ,.]\d{3})+`)
	longRe           = regexp.MustCompile(`\d{4,}`)
	plainRe          = regexp.MustCompile(`\d+`)
)

// ExtractPrice finds a monthly price in free text. It understands the
// "95k" / "95,5к" / "95 тыс" shorthands, grouped thousands and plain integers.
// A single digit before "к" is a room count ("3к квартира"), not thousands, and
// a number of four or more digits wins over a shorter one.
func ExtractPrice(text string) (int64, bool) {
	normalized := strings.Join(strings.Fields(text), " ")
	normalized = currencySuffixRe.ReplaceAllString(normalized, " ")

	if m := thousandRe.FindStringSubmatch(normalized); m != nil {
		whole, err := strconv.ParseInt(m[1], 10, 64)
		if err == nil {
			value := float64(whole)
			if m[2] != "" {
				fraction, _ := strconv.ParseFloat("0."+m[2], 64)
				value += fraction
			}
			return int64(math.Round(value * 1000)), true
		}
	}

	if m := groupedRe.FindString(normalized); m != "" {
		digits := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, m)
		if value, err := strconv.ParseInt(digits, 10, 64); err == nil {
			return value, true
		}
	}

	if m := longRe.FindString(normalized); m != "" {
		if value, err := strconv.ParseInt(m, 10, 64); err == nil {
			return value, true
		}
	}

	if m := plainRe.FindString(normalized); m != "" {
		if value, err := strconv.ParseInt(m, 10, 64); err == nil {
			return value, true
		}
	}

	return 0, false
}

// FormatPrice renders 95000 as "95 000".
func FormatPrice(value int64) string {
	return humanize.FormatInteger("# ###.", int(value))
}
