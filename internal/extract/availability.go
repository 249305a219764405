package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"

	"github.com/aloglu/centsible/internal/models"
)

// Availability is the stock verdict for a page with supporting evidence.
type Availability struct {
	Status     models.StockStatus `json:"status"`
	Confidence int                `json:"confidence"`
	Reason     string             `json:"reason"`
	Source     string             `json:"source"`
}

const (
	structuredOOSScore = 94
	structuredISScore  = 90
	maxActionElements  = 160
	maxAvailTextLen    = 280
)

// signal is one availability observation with provenance.
type signal struct {
	score  int
	reason string
	source string
}

// signals aggregates what the collectors observed. bestOut/bestIn keep the
// strongest evidence per direction; structured signals are tracked apart
// because schema.org tokens outrank everything textual.
type signals struct {
	bestOut          signal
	bestIn           signal
	structuredOut    signal
	structuredIn     signal
	enabledPurchase  bool
	disabledPurchase bool
	buyingOptions    bool
	requiresVariant  bool
	variantSelectors bool
}

func (sg *signals) raiseOut(score int, reason, source string) {
	if score > sg.bestOut.score {
		sg.bestOut = signal{score, reason, source}
	}
}

func (sg *signals) raiseIn(score int, reason, source string) {
	if score > sg.bestIn.score {
		sg.bestIn = signal{score, reason, source}
	}
}

func (sg *signals) structuredOutAt(score int, reason, source string) {
	if score > sg.structuredOut.score {
		sg.structuredOut = signal{score, reason, source}
	}
	sg.raiseOut(score, reason, source)
}

func (sg *signals) structuredInAt(score int, reason, source string) {
	if score > sg.structuredIn.score {
		sg.structuredIn = signal{score, reason, source}
	}
	sg.raiseIn(score, reason, source)
}

// classifyAvailability runs all collectors over the document and arbitrates
// the result.
func classifyAvailability(doc *goquery.Document, host string) Availability {
	sg := &signals{}
	amazon := amazonHost(host)

	collectStructuredMeta(doc, sg)
	collectStructuredJSONLD(doc, sg)
	collectTextual(doc, sg)
	collectActions(doc, sg, amazon)
	collectVariants(doc, sg)
	if amazon {
		collectAmazonStructures(doc, sg)
	}

	blobOOS := amazon && amazonPageTextOutOfStock(doc)
	return arbitrate(sg, amazon, blobOOS)
}

// collectStructuredMeta reads schema.org availability from meta and link
// elements.
func collectStructuredMeta(doc *goquery.Document, sg *signals) {
	doc.Find(`meta[itemprop="availability"], link[itemprop="availability"], meta[property="product:availability"]`).
		Each(func(_ int, s *goquery.Selection) {
			val, ok := s.Attr("content")
			if !ok || strings.TrimSpace(val) == "" {
				val, _ = s.Attr("href")
			}
			applyStructuredToken(sg, val, "structured:meta")
		})
}

// collectStructuredJSONLD walks every JSON-LD block for availability keys,
// wherever they nest.
func collectStructuredJSONLD(doc *goquery.Document, sg *signals) {
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		txt := strings.TrimSpace(s.Text())
		if txt == "" || !gjson.Valid(txt) {
			return
		}
		walkAvailabilityKeys(gjson.Parse(txt), sg)
	})
}

func walkAvailabilityKeys(node gjson.Result, sg *signals) {
	switch {
	case node.IsArray():
		node.ForEach(func(_, v gjson.Result) bool {
			walkAvailabilityKeys(v, sg)
			return true
		})
	case node.IsObject():
		node.ForEach(func(k, v gjson.Result) bool {
			key := k.String()
			if (key == "availability" || key == "offerAvailability") && v.Type == gjson.String {
				applyStructuredToken(sg, v.String(), "structured:json-ld")
			}
			walkAvailabilityKeys(v, sg)
			return true
		})
	}
}

// applyStructuredToken matches a raw token value ("https://schema.org/InStock",
// "OUT_OF_STOCK") against the structured token tables. Out-of-stock tokens
// are checked first since "notinstock" contains "instock".
func applyStructuredToken(sg *signals, val, source string) {
	compact := foldCompact(val)
	if compact == "" {
		return
	}
	if tok, ok := containsAny(compact, structuredOutTokens); ok {
		sg.structuredOutAt(structuredOOSScore, fmt.Sprintf("structured availability token %q", tok), source)
		return
	}
	if tok, ok := containsAny(compact, structuredInTokens); ok {
		sg.structuredInAt(structuredISScore, fmt.Sprintf("structured availability token %q", tok), source)
	}
}

// availabilityProbes are the places stock wording usually lives. Text found
// here earns availProbeBonus on top of the term score, which is what lets a
// strong phrase in a labeled container reach the arbitration thresholds
// while the same phrase elsewhere on the page stays inconclusive.
var availabilityProbes = []string{
	"#availability",
	"#availabilityInsideBuyBox_feature_div",
	"#outOfStock",
	`[itemprop="availability"]`,
	"[data-stock]",
	"[data-availability]",
	`[class*="stock"]`,
	`[class*="availability"]`,
	`[id*="stock"]`,
	`[id*="availability"]`,
}

const availProbeBonus = 12

// collectTextual scans availability-ish containers for multilingual stock
// phrases. Out-of-stock terms are scanned first per element; a text that
// matched one never also counts as in-stock ("stokta yok" contains
// "stokta").
func collectTextual(doc *goquery.Document, sg *signals) {
	for _, probe := range availabilityProbes {
		src := "text:" + probe
		count := 0
		doc.Find(probe).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if count >= 25 {
				return false
			}
			count++
			if isHidden(s) {
				return true
			}
			text := s.Text()
			if name, ok := dataAttrName(probe); ok {
				if v, found := s.Attr(name); found {
					text = v + " " + text
				}
			}
			text = truncateRunes(strings.TrimSpace(text), maxAvailTextLen)
			if text == "" {
				return true
			}
			folded := fold(text)
			if term, score, ok := matchTermList(folded, outOfStockTerms, oosTermScore, oosTermScoreStrong); ok {
				sg.raiseOut(score+availProbeBonus, fmt.Sprintf("text match %q", term), src)
				return true
			}
			if term, score, ok := matchTermList(folded, inStockTerms, isTermScore, isTermScoreStrong); ok {
				sg.raiseIn(score+availProbeBonus, fmt.Sprintf("text match %q", term), src)
			}
			return true
		})
	}
}

// dataAttrName extracts the attribute name from a bare [data-*] probe.
func dataAttrName(sel string) (string, bool) {
	if strings.HasPrefix(sel, "[data-") && strings.HasSuffix(sel, "]") && !strings.Contains(sel, "=") {
		return sel[1 : len(sel)-1], true
	}
	return "", false
}

const actionSelector = `button, input[type="submit"], input[type="button"], [role="button"], a[class*="button"]`

// collectActions inspects visible purchase-path controls. Buying-options
// and notify-me affordances are recognized before purchase verbs so that
// "satın alma seçeneklerini gör" is not misread as an enabled buy button.
func collectActions(doc *goquery.Document, sg *signals, amazon bool) {
	count := 0
	doc.Find(actionSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if count >= maxActionElements {
			return false
		}
		count++
		if isHidden(s) {
			return true
		}
		folded := fold(actionLabel(s) + " " + attrBlob(s))
		if folded == "" {
			return true
		}
		if tok, ok := containsAny(folded, buyingOptionsTokens); ok {
			sg.buyingOptions = true
			sg.raiseOut(68, fmt.Sprintf("buying-options control %q", tok), "buying-options")
			return true
		}
		if tok, ok := containsAny(folded, notifyTokens); ok {
			sg.raiseOut(74, fmt.Sprintf("restock-notify control %q", tok), "notify-control")
			return true
		}
		if _, ok := containsAny(folded, variantPromptTokens); ok {
			sg.requiresVariant = true
			return true
		}
		tok, ok := containsAny(folded, purchaseTokens)
		if !ok {
			return true
		}
		if amazon && containsModifier(folded) {
			// keyboard shortcut hint, not a control
			return true
		}
		if isDisabledControl(s) {
			sg.disabledPurchase = true
			sg.raiseOut(80, fmt.Sprintf("purchase control %q disabled", tok), "purchase-action-disabled")
		} else {
			sg.enabledPurchase = true
			sg.raiseIn(78, fmt.Sprintf("purchase control %q enabled", tok), "purchase-action")
		}
		return true
	})
}

func actionLabel(s *goquery.Selection) string {
	if v, ok := s.Attr("aria-label"); ok && strings.TrimSpace(v) != "" {
		return v
	}
	if v, ok := s.Attr("value"); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return truncateRunes(s.Text(), 200)
}

func attrBlob(s *goquery.Selection) string {
	var parts []string
	for _, attr := range []string{"id", "name", "class", "data-testid", "data-test-id", "data-action"} {
		if v, ok := s.Attr(attr); ok && v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}

func isDisabledControl(s *goquery.Selection) bool {
	if _, ok := s.Attr("disabled"); ok {
		return true
	}
	if v, _ := s.Attr("aria-disabled"); v == "true" {
		return true
	}
	cls, _ := s.Attr("class")
	return strings.Contains(strings.ToLower(cls), "disabled")
}

// collectVariants flags size/color pickers. A select with multiple options
// counts, as does one whose attributes carry variant semantics.
func collectVariants(doc *goquery.Document, sg *signals) {
	doc.Find("select").Each(func(_ int, s *goquery.Selection) {
		if isHidden(s) {
			return
		}
		if s.Find("option").Length() > 1 {
			sg.variantSelectors = true
			return
		}
		if variantAttrRe.MatchString(strings.ToLower(attrBlob(s))) {
			sg.variantSelectors = true
		}
	})
}

var amazonOfferListingSelectors = []string{
	"#buybox-see-all-buying-choices",
	`[data-action="show-all-offers-display"]`,
	"#all-offers-display",
	"#aod-has-oas-offers",
	`a[href*="/gp/offer-listing/"]`,
	`a[href*="ref=dp_olp"]`,
}

// collectAmazonStructures detects Amazon's no-buybox layouts: the
// unqualified buybox and the see-all-buying-choices affordances that appear
// when Amazon itself has no offer.
func collectAmazonStructures(doc *goquery.Document, sg *signals) {
	if doc.Find(`[id^="unqualifiedBuyBox"]`).Length() > 0 {
		sg.buyingOptions = true
		sg.raiseOut(88, "unqualified buybox present", "amazon-buybox")
	}
	for _, sel := range amazonOfferListingSelectors {
		if doc.Find(sel).Length() > 0 {
			sg.buyingOptions = true
			sg.raiseOut(72, "offer-listing affordance present", "buying-options")
			return
		}
	}
}

// amazonPageTextOutOfStock checks the availability box, title and meta
// description for unambiguous unavailability phrasing.
func amazonPageTextOutOfStock(doc *goquery.Document) bool {
	var parts []string
	for _, sel := range []string{"#availability", "#outOfStock", "title"} {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			parts = append(parts, truncateRunes(s.Text(), 400))
		})
	}
	if v, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		parts = append(parts, truncateRunes(v, 400))
	}
	compact := foldCompact(strings.Join(parts, " "))
	_, ok := containsAny(compact, amazonStrongOOSPhrases)
	return ok
}

// arbitrate turns collected signals into a verdict. Rules run in order;
// the first that applies wins.
func arbitrate(sg *signals, amazon, blobOOS bool) Availability {
	in, out := sg.bestIn, sg.bestOut

	// Variant-gated buy buttons read as in stock: shops disable the button
	// until a size or color is chosen, and "Select Size" wording must not
	// flip such pages to out of stock.
	if (sg.requiresVariant || sg.variantSelectors) &&
		sg.disabledPurchase && !sg.enabledPurchase &&
		out.score < 92 && sg.structuredOut.score < structuredOOSScore {
		return Availability{
			Status:     models.StockInStock,
			Confidence: maxInt(in.score, 72),
			Reason:     "purchase disabled pending variant selection",
			Source:     "variant-gate",
		}
	}
	if sg.structuredOut.score > 0 &&
		(sg.structuredIn.score == 0 || sg.structuredOut.score >= sg.structuredIn.score+2) {
		return verdict(models.StockOutOfStock, sg.structuredOut)
	}
	if sg.structuredIn.score > 0 {
		return verdict(models.StockInStock, sg.structuredIn)
	}
	if sg.enabledPurchase && !sg.disabledPurchase && out.score < 88 {
		return Availability{
			Status:     models.StockInStock,
			Confidence: maxInt(in.score, 74),
			Reason:     in.reason,
			Source:     in.source,
		}
	}
	if out.score >= 82 && out.score >= in.score+10 {
		return verdict(models.StockOutOfStock, out)
	}
	if in.score >= 72 && in.score >= out.score+6 {
		return verdict(models.StockInStock, in)
	}
	if sg.disabledPurchase && out.score >= 74 {
		return verdict(models.StockOutOfStock, out)
	}
	if amazon && blobOOS {
		return Availability{
			Status:     models.StockOutOfStock,
			Confidence: maxInt(out.score, 90),
			Reason:     "strong unavailability phrasing on page",
			Source:     "amazon-page-text",
		}
	}
	if amazon && sg.buyingOptions && !sg.enabledPurchase && in.score < 78 {
		return Availability{
			Status:     models.StockOutOfStock,
			Confidence: maxInt(out.score, 84),
			Reason:     "only third-party buying options offered",
			Source:     "buying-options",
		}
	}
	conf := maxInt(in.score, out.score)
	return Availability{
		Status:     models.StockUnknown,
		Confidence: maxInt(conf, 0),
		Reason:     "no decisive availability signals",
		Source:     "none",
	}
}

func verdict(status models.StockStatus, sig signal) Availability {
	return Availability{Status: status, Confidence: sig.score, Reason: sig.reason, Source: sig.source}
}

var hiddenStyleRe = regexp.MustCompile(`display:none|visibility:hidden|opacity:0(\.0+)?($|;)`)

var hiddenClassTokens = map[string]bool{
	"hidden":          true,
	"d-none":          true,
	"sr-only":         true,
	"visually-hidden": true,
}

// isHidden applies the cheap visibility heuristics available without a
// rendering pass.
func isHidden(s *goquery.Selection) bool {
	if _, ok := s.Attr("hidden"); ok {
		return true
	}
	if v, _ := s.Attr("aria-hidden"); v == "true" {
		return true
	}
	if style, ok := s.Attr("style"); ok {
		st := strings.ReplaceAll(strings.ToLower(style), " ", "")
		if hiddenStyleRe.MatchString(st) {
			return true
		}
	}
	if cls, ok := s.Attr("class"); ok {
		for _, tok := range strings.Fields(strings.ToLower(cls)) {
			if hiddenClassTokens[tok] {
				return true
			}
		}
	}
	return false
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
