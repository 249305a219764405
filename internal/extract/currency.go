package extract

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// supportedCurrencies is the set the scorer rewards and the FX table seeds.
var supportedCurrencies = map[string]bool{
	"USD": true,
	"EUR": true,
	"GBP": true,
	"TRY": true,
	"JPY": true,
	"CNY": true,
	"CAD": true,
	"AUD": true,
}

// numberRe captures price-like numeric substrings: grouped thousands with a
// decimal part, or a plain run with an optional decimal part. The first
// match wins.
var numberRe = regexp.MustCompile(`[0-9]{1,3}(?:[.,\s][0-9]{3})*(?:[.,][0-9]{1,2})|[0-9]+(?:[.,][0-9]{1,2})?`)

var tlWordRe = regexp.MustCompile(`(^|[^A-Z])TL($|[^A-Z])`)

// codeRe matches ISO codes only at word-ish boundaries so that "COUNTRY"
// does not read as TRY nor "NEURO" as EUR.
var codeRe = func() map[string]*regexp.Regexp {
	m := make(map[string]*regexp.Regexp)
	for _, c := range []string{"TRY", "EUR", "GBP", "JPY", "CNY", "RMB", "USD", "CAD", "AUD"} {
		m[c] = regexp.MustCompile(`(^|[^A-Z])` + c + `($|[^A-Z])`)
	}
	return m
}()

func hasCode(up, code string) bool {
	return codeRe[code].MatchString(up)
}

// detectCurrency inspects text for a currency symbol or ISO code. The bool
// reports whether a marker was actually present; callers fall back to the
// site's preferred currency when it is false. A bare "$" means USD.
func detectCurrency(text string) (string, bool) {
	up := strings.ToUpper(text)
	switch {
	case strings.Contains(up, "₺"):
		return "TRY", true
	case strings.Contains(up, "€"):
		return "EUR", true
	case strings.Contains(up, "£"):
		return "GBP", true
	case strings.Contains(up, "¥"), strings.Contains(up, "￥"):
		if hasCode(up, "CNY") || hasCode(up, "RMB") {
			return "CNY", true
		}
		return "JPY", true
	case strings.Contains(up, "元"):
		return "CNY", true
	}
	switch {
	case hasCode(up, "TRY") || tlWordRe.MatchString(up):
		return "TRY", true
	case hasCode(up, "EUR"):
		return "EUR", true
	case hasCode(up, "GBP"):
		return "GBP", true
	case hasCode(up, "JPY"):
		return "JPY", true
	case hasCode(up, "CNY") || hasCode(up, "RMB"):
		return "CNY", true
	case strings.Contains(up, "CA$") || strings.Contains(up, "C$") || hasCode(up, "CAD"):
		return "CAD", true
	case strings.Contains(up, "AU$") || strings.Contains(up, "A$") || hasCode(up, "AUD"):
		return "AUD", true
	case strings.Contains(up, "$") || hasCode(up, "USD"):
		return "USD", true
	}
	return "", false
}

// turkishLike reports currencies whose locales conventionally write comma
// decimals and dot thousands.
func turkishLike(currency string) bool {
	switch currency {
	case "TRY", "EUR":
		return true
	}
	return false
}

var errBadNumber = errors.New("unparseable number")

// normalizeNumber turns a matched numeric substring into a float, resolving
// separator ambiguity by locale convention:
//
//   - both "." and ",": the later one is the decimal separator
//   - only ",": decimal for Turkish-like currencies or a two-digit tail,
//     thousands otherwise
//   - only ".": thousands for Turkish-like currencies with a three-digit
//     final group, decimal otherwise
//
// The result is rejected unless it is a finite positive number.
func normalizeNumber(raw, currency string) (float64, error) {
	s := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' || r == '.' || r == ',' {
			return r
		}
		return -1
	}, raw)
	if s == "" {
		return 0, errBadNumber
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = stripAllButLast(s, ',')
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
			s = stripAllButLast(s, '.')
		}
	case lastComma >= 0:
		tail := len(s) - lastComma - 1
		if turkishLike(currency) || tail == 2 {
			s = stripAllButLast(s, ',')
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastDot >= 0:
		tail := len(s) - lastDot - 1
		if turkishLike(currency) && tail == 3 {
			s = strings.ReplaceAll(s, ".", "")
		} else {
			s = stripAllButLast(s, '.')
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errBadNumber
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, errBadNumber
	}
	return v, nil
}

// stripAllButLast removes every occurrence of sep except the final one.
func stripAllButLast(s string, sep byte) string {
	last := strings.LastIndexByte(s, sep)
	if last < 0 {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == sep && i != last {
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
