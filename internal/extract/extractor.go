// Package extract turns fetched product HTML into a price reading and a
// stock verdict. Candidates are collected from five sources in descending
// trust order (JSON-LD offers, embedded raw JSON, user selector hints, site
// adapter selectors, text heuristics), scored contextually, deduplicated
// and ranked; availability is classified from structured tokens, visible
// stock wording and purchase-path controls.
package extract

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/tidwall/gjson"

	"github.com/aloglu/centsible/internal/models"
)

const (
	jsonLDSelector  = `script[type="application/ld+json"]`
	rawJSONSelector = "embedded-json"
	maxSuggestions  = 5
)

// Result is everything one extraction pass learned about a page. Price is
// nil when no candidate survived; Currency is always set, falling back to
// the host-preferred currency.
type Result struct {
	Price        *float64     `json:"price"`
	Currency     string       `json:"currency"`
	Confidence   int          `json:"confidence"`
	SelectorUsed string       `json:"selectorUsed,omitempty"`
	Source       string       `json:"source,omitempty"`
	Suggestions  []Candidate  `json:"suggestions,omitempty"`
	Availability Availability `json:"availability"`
}

// Extractor parses product pages. It is stateless and safe for concurrent
// use.
type Extractor struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Extractor {
	return &Extractor{logger: logger.With("component", "extractor")}
}

// Extract runs the full pipeline over raw HTML. selectorHint is the item's
// optional user-provided CSS hint; pageURL drives host-specific behavior
// (preferred currency, site adapters, the Amazon candidate gate).
func (e *Extractor) Extract(html, selectorHint, pageURL string) Result {
	host := hostOf(pageURL)
	preferred := preferredCurrency(host)
	amazon := amazonHost(host)

	res := Result{Currency: preferred}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		e.logger.Warn("html parse failed", "url", pageURL, "error", err)
		res.Availability = Availability{Status: models.StockUnknown, Reason: "page did not parse", Source: "none"}
		return res
	}

	var cands []Candidate
	cands = append(cands, e.jsonLDCandidates(doc, preferred)...)
	if !amazon {
		cands = append(cands, e.rawJSONCandidates(html, preferred)...)
	}
	if strings.TrimSpace(selectorHint) != "" {
		cands = append(cands, e.customCandidates(doc, selectorHint, preferred)...)
	}
	cands = append(cands, e.selectorCandidates(doc, host, preferred)...)
	if !amazon {
		cands = append(cands, e.textCandidates(doc, preferred)...)
	}

	cands = dedupeCandidates(cands)
	if amazon {
		cands = gateAmazon(cands, preferred)
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].Score > cands[j].Score })

	res.Availability = classifyAvailability(doc, host)

	if len(cands) > 0 {
		best := cands[0]
		res.Price = &best.Price
		res.Currency = best.Currency
		res.Confidence = clampConfidence(best.Score)
		res.SelectorUsed = best.Selector
		res.Source = best.Source
		n := len(cands)
		if n > maxSuggestions {
			n = maxSuggestions
		}
		res.Suggestions = cands[:n:n]
	}

	// A confidently out-of-stock Amazon page reports no price: the buybox
	// often keeps a stale figure after the offer is gone.
	if amazon && res.Availability.Status == models.StockOutOfStock && res.Availability.Confidence >= 80 {
		res.Price = nil
		res.Confidence = res.Availability.Confidence
	}

	e.logger.Debug("extraction finished",
		"url", pageURL,
		"candidates", len(cands),
		"source", res.Source,
		"confidence", res.Confidence,
		"stock", res.Availability.Status)
	return res
}

// jsonLDCandidates walks every JSON-LD block for offers, wherever they
// nest (@graph, arrays, nested products).
func (e *Extractor) jsonLDCandidates(doc *goquery.Document, preferred string) []Candidate {
	var out []Candidate
	doc.Find(jsonLDSelector).Each(func(_ int, s *goquery.Selection) {
		txt := strings.TrimSpace(s.Text())
		if txt == "" || !gjson.Valid(txt) {
			return
		}
		walkOffers(gjson.Parse(txt), func(offer gjson.Result) {
			raw, ccy := offerPrice(offer)
			if raw == "" {
				return
			}
			snippet := raw
			if ccy != "" {
				snippet = raw + " " + ccy
			}
			if c, ok := buildCandidateCcy(snippet, ccy, jsonLDSelector, SourceJSONLD, scoreJSONLD, preferred); ok {
				out = append(out, c)
			}
		})
	})
	return out
}

func walkOffers(node gjson.Result, visit func(offer gjson.Result)) {
	switch {
	case node.IsArray():
		node.ForEach(func(_, v gjson.Result) bool {
			walkOffers(v, visit)
			return true
		})
	case node.IsObject():
		if off := node.Get("offers"); off.Exists() {
			if off.IsArray() {
				off.ForEach(func(_, v gjson.Result) bool {
					visit(v)
					return true
				})
			} else if off.IsObject() {
				visit(off)
			}
		}
		node.ForEach(func(_, v gjson.Result) bool {
			walkOffers(v, visit)
			return true
		})
	}
}

func offerPrice(offer gjson.Result) (raw, currency string) {
	for _, key := range []string{"price", "lowPrice", "highPrice"} {
		if v := offer.Get(key); v.Exists() && v.String() != "" {
			return v.String(), offer.Get("priceCurrency").String()
		}
	}
	return "", ""
}

var (
	rawAmountRe = regexp.MustCompile(`"priceAmount"\s*:\s*"?([0-9][0-9.,]*)`)
	rawPairRe   = regexp.MustCompile(`"price"\s*:\s*"?([0-9][0-9.,]*)"?[\s\S]{0,200}?"priceCurrency"\s*:\s*"([A-Za-z]{3})"`)
)

// rawJSONCandidates scrapes price fields out of inline JSON state blobs
// (Next.js data, Shopify analytics and the like) without parsing them.
// Skipped on Amazon, where such blobs are full of unrelated offers.
func (e *Extractor) rawJSONCandidates(html, preferred string) []Candidate {
	var out []Candidate
	for _, m := range rawPairRe.FindAllStringSubmatch(html, 4) {
		if c, ok := buildCandidateCcy(m[1]+" "+strings.ToUpper(m[2]), m[2], rawJSONSelector, SourceRawJSON, scoreRawPair, preferred); ok {
			out = append(out, c)
		}
	}
	for _, m := range rawAmountRe.FindAllStringSubmatch(html, 4) {
		if c, ok := buildCandidate(m[1], rawJSONSelector, SourceRawJSON, scoreRawAmount, preferred); ok {
			out = append(out, c)
		}
	}
	return out
}

// customCandidates tries the user hint verbatim plus id, class and test-id
// derivations. Invalid derivations are skipped, never fatal: hints are user
// input.
func (e *Extractor) customCandidates(doc *goquery.Document, hint, preferred string) []Candidate {
	hint = strings.TrimSpace(hint)
	probes := []string{
		hint,
		"#" + hint,
		"." + hint,
		`[data-test-id="` + hint + `"]`,
		`[data-testid="` + hint + `"]`,
	}
	var out []Candidate
	for _, sel := range probes {
		if c, ok := probeSelector(doc, sel, SourceCustom, scoreCustom, preferred); ok {
			out = append(out, c)
		}
	}
	return out
}

func (e *Extractor) selectorCandidates(doc *goquery.Document, host, preferred string) []Candidate {
	var out []Candidate
	for _, sel := range selectorsFor(host) {
		if c, ok := probeSelector(doc, sel, SourceSelector, scoreSelector, preferred); ok {
			out = append(out, c)
		}
	}
	return out
}

// probeSelector returns a candidate from the first element under sel that
// yields one. Selectors are compiled through cascadia directly so that a
// malformed one is a miss rather than a panic.
func probeSelector(doc *goquery.Document, sel, source string, base int, preferred string) (Candidate, bool) {
	matcher, err := cascadia.Compile(sel)
	if err != nil {
		return Candidate{}, false
	}
	var cand Candidate
	found := false
	doc.FindMatcher(matcher).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if c, ok := buildCandidate(elementValue(s), sel, source, base, preferred); ok {
			cand, found = c, true
			return false
		}
		return true
	})
	return cand, found
}

// textCandidates is the last-resort scan over leaf text fragments. It walks
// at most the first maxTextElements body descendants and only keeps
// fragments that carry a currency marker or price word, so it cannot bury
// structured readings; its base score keeps it below every other source
// regardless.
func (e *Extractor) textCandidates(doc *goquery.Document, preferred string) []Candidate {
	body := doc.Find("body")
	if body.Length() == 0 {
		return nil
	}
	var out []Candidate
	body.Find("*").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if i >= maxTextElements {
			return false
		}
		switch goquery.NodeName(s) {
		case "script", "style", "noscript", "template":
			return true
		}
		own := ownText(s)
		if len(own) < minTextFragment || len(own) > maxTextFragment {
			return true
		}
		if c, ok := buildCandidate(own, textSelectorFor(s), SourceText, scoreText, preferred); ok {
			out = append(out, c)
		}
		return true
	})
	return out
}

// ownText concatenates the element's direct text nodes, excluding children,
// so a wrapper div does not duplicate every nested price.
func ownText(s *goquery.Selection) string {
	var b strings.Builder
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		if goquery.NodeName(c) == "#text" {
			b.WriteString(c.Text())
		}
	})
	return strings.TrimSpace(b.String())
}

// textSelectorFor synthesizes a readable provenance selector for a text
// fragment: tag#id, tag.firstClass or bare tag.
func textSelectorFor(s *goquery.Selection) string {
	tag := goquery.NodeName(s)
	if id, ok := s.Attr("id"); ok && id != "" {
		return tag + "#" + id
	}
	if cls, ok := s.Attr("class"); ok {
		if fields := strings.Fields(cls); len(fields) > 0 {
			return tag + "." + fields[0]
		}
	}
	return tag
}

// gateAmazon drops every candidate that is not either a JSON-LD reading or
// a trusted buybox selector in the storefront's own currency. Wildcard and
// heuristic candidates never win on Amazon.
func gateAmazon(cands []Candidate, preferred string) []Candidate {
	out := cands[:0]
	for _, c := range cands {
		if c.Source == SourceJSONLD {
			out = append(out, c)
			continue
		}
		if amazonAllowedSelector(c.Selector) && c.Currency == preferred {
			out = append(out, c)
		}
	}
	return out
}
