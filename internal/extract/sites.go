package extract

import (
	"net/url"
	"strings"
)

// siteAdapter binds a host family to its price selectors and currency.
type siteAdapter struct {
	match     func(host string) bool
	currency  string
	selectors []string
}

// amazonSelectors are the only CSS probes trusted on Amazon pages. Wildcard
// and heuristic candidates are notoriously wrong there (installment rows,
// subscribe-and-save, warranty upsells), so extraction is restricted to the
// buybox price blocks plus price metas.
var amazonSelectors = []string{
	"#corePriceDisplay_desktop_feature_div .a-price .a-offscreen",
	"#corePrice_feature_div .a-price .a-offscreen",
	"#corePriceDisplay_mobile_feature_div .a-price .a-offscreen",
	"#corePrice_desktop .a-price .a-offscreen",
	"#priceblock_ourprice",
	"#priceblock_dealprice",
	"#priceblock_saleprice",
	"#price_inside_buybox",
	"#apex_desktop .a-price .a-offscreen",
	"#apex_offerDisplay_desktop .a-price .a-offscreen",
	`[data-feature-name="apex_desktop"] .a-price .a-offscreen`,
	"#twister-plus-price-data-price",
	`meta[itemprop="price"]`,
	`meta[property="og:price:amount"]`,
	`meta[property="product:price:amount"]`,
}

// genericSelectors is the broad probe list for unrecognized hosts, ordered
// roughly most-specific first. Wildcards sit last and carry a score penalty.
var genericSelectors = []string{
	`meta[itemprop="price"]`,
	`meta[property="product:price:amount"]`,
	`meta[property="og:price:amount"]`,
	`[itemprop="price"]`,
	".price--current",
	".price-current",
	".price--sale",
	".current-price",
	".sales-price",
	".product-price-value",
	".product-price",
	".product__price",
	".price-value",
	".price-item--sale",
	".price-item--regular",
	"#our_price_display",
	"[data-price]",
	"[data-product-price]",
	`[data-testid="price"]`,
	`[data-test-id="price"]`,
	".price",
	"#price",
	`[class*="price"]`,
	`[id*="price"]`,
}

var siteAdapters = []siteAdapter{
	{
		match:    func(h string) bool { return h == "www.trendyol.com" || h == "trendyol.com" },
		currency: "TRY",
		selectors: []string{
			".prc-dsc",
			".prc-slg",
			".product-price-container .prc-dsc",
			`[class*="price"]`,
		},
	},
	{
		match:    func(h string) bool { return h == "www.hepsiburada.com" || h == "hepsiburada.com" },
		currency: "TRY",
		selectors: []string{
			`[data-test-id="price-current-price"]`,
			`[data-test-id="price"]`,
			"#offering-price",
			`[class*="price"]`,
		},
	},
	{
		match:    func(h string) bool { return h == "www.n11.com" || h == "n11.com" },
		currency: "TRY",
		selectors: []string{
			".newPrice ins",
			".newPrice",
			".priceContainer ins",
			`[class*="price"]`,
		},
	},
	{
		match:    func(h string) bool { return strings.HasSuffix(h, "teknosa.com") || strings.HasSuffix(h, "vatanbilgisayar.com") || strings.HasSuffix(h, "mediamarkt.com.tr") },
		currency: "TRY",
		selectors: []string{
			`[data-test="product-price"]`,
			".product-price",
			".prc",
			`[class*="price"]`,
		},
	},
}

// hostOf extracts the lowercased hostname from a page URL, tolerating junk.
func hostOf(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Hostname() == "" {
		return strings.ToLower(strings.TrimSpace(pageURL))
	}
	return strings.ToLower(u.Hostname())
}

// amazonHost reports any Amazon storefront host.
func amazonHost(host string) bool {
	return strings.Contains(host, "amazon.")
}

// preferredCurrency derives the currency a host most plausibly prices in.
func preferredCurrency(host string) string {
	switch {
	case strings.HasSuffix(host, "amazon.com.tr"):
		return "TRY"
	case strings.HasSuffix(host, "amazon.de"), strings.HasSuffix(host, "amazon.fr"),
		strings.HasSuffix(host, "amazon.es"), strings.HasSuffix(host, "amazon.it"),
		strings.HasSuffix(host, "amazon.nl"):
		return "EUR"
	case strings.HasSuffix(host, "amazon.co.uk"):
		return "GBP"
	case strings.HasSuffix(host, "amazon.co.jp"), strings.HasSuffix(host, "amazon.jp"):
		return "JPY"
	case strings.HasSuffix(host, "amazon.ca"):
		return "CAD"
	case strings.HasSuffix(host, "amazon.com.au"):
		return "AUD"
	case strings.HasSuffix(host, ".tr"):
		return "TRY"
	case strings.HasSuffix(host, ".de"), strings.HasSuffix(host, ".fr"),
		strings.HasSuffix(host, ".es"), strings.HasSuffix(host, ".it"),
		strings.HasSuffix(host, ".nl"):
		return "EUR"
	case strings.HasSuffix(host, ".co.uk") || strings.HasSuffix(host, ".uk"):
		return "GBP"
	case strings.HasSuffix(host, ".jp"):
		return "JPY"
	case strings.HasSuffix(host, ".cn"):
		return "CNY"
	case strings.HasSuffix(host, ".ca"):
		return "CAD"
	case strings.HasSuffix(host, ".com.au") || strings.HasSuffix(host, ".au"):
		return "AUD"
	}
	for _, a := range siteAdapters {
		if a.match(host) {
			return a.currency
		}
	}
	return "USD"
}

// selectorsFor returns the CSS probe list for a host. Amazon gets only its
// own list; known retailers get theirs plus the generic list; everything
// else gets the generic list.
func selectorsFor(host string) []string {
	if amazonHost(host) {
		return amazonSelectors
	}
	for _, a := range siteAdapters {
		if a.match(host) {
			merged := make([]string, 0, len(a.selectors)+len(genericSelectors))
			merged = append(merged, a.selectors...)
			for _, sel := range genericSelectors {
				if !containsString(merged, sel) {
					merged = append(merged, sel)
				}
			}
			return merged
		}
	}
	return genericSelectors
}

// amazonAllowedSelector reports whether a selector is one of the trusted
// Amazon price locations. Candidates from other selectors never survive on
// Amazon hosts.
func amazonAllowedSelector(sel string) bool {
	switch {
	case strings.HasPrefix(sel, "#corePrice"),
		strings.HasPrefix(sel, "#priceblock_"),
		strings.HasPrefix(sel, "#price_inside_buybox"),
		strings.HasPrefix(sel, "#apex"),
		strings.HasPrefix(sel, `[data-feature-name="apex`),
		strings.Contains(sel, "twister-plus-price-data-price"):
		return true
	}
	if strings.HasPrefix(sel, "meta[") &&
		(strings.Contains(sel, `itemprop="price"`) ||
			strings.Contains(sel, "og:price:amount") ||
			strings.Contains(sel, "product:price:amount")) {
		return true
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
