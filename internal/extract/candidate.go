package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Candidate source tags, in collection order. Ranking ties break toward the
// earlier source because collection order is preserved through the sort.
const (
	SourceJSONLD   = "json-ld"
	SourceRawJSON  = "raw-json"
	SourceCustom   = "custom"
	SourceSelector = "selector"
	SourceText     = "text"
)

// Candidate is one potential price reading with provenance. Candidates
// surface in diagnostics and selector suggestions, so the fields are
// JSON-tagged.
type Candidate struct {
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
	Selector string  `json:"selector"`
	Source   string  `json:"source"`
	Score    int     `json:"score"`
	Snippet  string  `json:"snippet"`
}

const (
	scoreJSONLD      = 95
	scoreRawAmount   = 88
	scoreRawPair     = 90
	scoreCustom      = 88
	scoreSelector    = 60
	scoreText        = 30
	maxValueLen      = 220
	maxSnippetLen    = 120
	maxLooseNumbers  = 2
	maxTextElements  = 1200
	maxTextFragment  = 140
	minTextFragment  = 2
)

var priceWords = []string{"price", "fiyat", "sale", "cost", "tutar", "deal"}

func hasPriceWord(lower string) bool {
	_, ok := containsAny(lower, priceWords)
	return ok
}

// elementValue resolves the raw price text of an element, preferring
// machine-readable attributes over rendered text.
func elementValue(s *goquery.Selection) string {
	for _, attr := range []string{"content", "data-price", "aria-label"} {
		if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return s.Text()
}

// buildCandidate applies the shared construction rules to a raw value: a
// currency marker or fallback, the first regex-matched number, rejection of
// number-soup without an explicit currency, and normalization. ok is false
// when the value cannot yield a plausible price.
func buildCandidate(raw, selector, source string, base int, preferred string) (Candidate, bool) {
	return buildCandidateCcy(raw, "", selector, source, base, preferred)
}

// buildCandidateCcy is buildCandidate with a currency already known from
// structured data, which then bypasses the marker scan.
func buildCandidateCcy(raw, forced, selector, source string, base int, preferred string) (Candidate, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > maxValueLen {
		return Candidate{}, false
	}

	currency, explicit := detectCurrency(raw)
	if forced != "" {
		currency, explicit = strings.ToUpper(forced), true
	}
	if !explicit {
		currency = preferred
	}

	nums := numberRe.FindAllString(raw, -1)
	if len(nums) == 0 {
		return Candidate{}, false
	}
	if len(nums) > maxLooseNumbers && !explicit {
		return Candidate{}, false
	}
	if source == SourceText && !explicit && !hasPriceWord(strings.ToLower(raw)) {
		return Candidate{}, false
	}

	price, err := normalizeNumber(nums[0], currency)
	if err != nil {
		return Candidate{}, false
	}

	snippet := raw
	if len(snippet) > maxSnippetLen {
		snippet = snippet[:maxSnippetLen]
	}
	c := Candidate{
		Price:    price,
		Currency: currency,
		Selector: selector,
		Source:   source,
		Score:    base,
		Snippet:  snippet,
	}
	c.Score = adjustScore(c, raw, preferred)
	return c, true
}

var (
	textBoostWords    = []string{"price", "fiyat", "sale", "deal", "current", "ourprice", "discount"}
	textShippingWords = []string{"shipping", "delivery", "kargo", "installment", "taksit", "monthly", "save"}
	textMetaWords     = []string{"availability", "website", "url", "vat", "date", "mm/dd/yyyy"}
	textLayoutWords   = []string{"width", "height", "margin", "padding", "font", "button", "registry", "spacing"}
	selBoostWords     = []string{"price", "fiyat", "ourprice", "deal", "sale", "discount"}
	selPenaltyWords   = []string{"old", "strike", "cross", "was", "list", "compare"}
)

// adjustScore applies the contextual scoring table to a constructed
// candidate. The arithmetic is pure so table rows can be tested directly.
func adjustScore(c Candidate, raw, preferred string) int {
	score := c.Score
	text := strings.ToLower(raw)
	sel := strings.ToLower(c.Selector)

	if _, ok := containsAny(text, textBoostWords); ok {
		score += 25
	}
	if _, ok := containsAny(text, textShippingWords); ok {
		score -= 25
	}
	if _, ok := containsAny(text, textMetaWords); ok {
		score -= 40
	}
	if _, ok := containsAny(text, textLayoutWords); ok {
		score -= 45
	}
	if _, ok := containsAny(sel, selBoostWords); ok {
		score += 18
	}
	if _, ok := containsAny(sel, selPenaltyWords); ok {
		score -= 20
	}
	if strings.Contains(sel, "[class*=") || strings.Contains(sel, "[id*=") {
		score -= 20
	}
	if c.Currency != preferred && c.Source != SourceJSONLD {
		score -= 12
	}
	if c.Price < 2 && c.Source != SourceJSONLD {
		score -= 50
	}
	if supportedCurrencies[c.Currency] {
		score += 8
	}
	if c.Price > 0 && c.Price < 2_000_000 {
		score += 5
	}
	return score
}

// clampConfidence bounds a ranked score into the reported 0..100 range.
func clampConfidence(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// dedupeCandidates collapses identical (selector, price, currency) readings
// onto the highest score while preserving first-seen order.
func dedupeCandidates(cands []Candidate) []Candidate {
	type key struct {
		sel      string
		price    float64
		currency string
	}
	index := make(map[key]int, len(cands))
	out := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		k := key{c.Selector, c.Price, c.Currency}
		if i, ok := index[k]; ok {
			if c.Score > out[i].Score {
				out[i].Score = c.Score
				out[i].Snippet = c.Snippet
				out[i].Source = c.Source
			}
			continue
		}
		index[k] = len(out)
		out = append(out, c)
	}
	return out
}
