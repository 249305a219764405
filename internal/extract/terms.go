package extract

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	nonAlnumRe   = regexp.MustCompile(`[^a-z0-9]+`)
	modifierRe   = regexp.MustCompile(`(^|[^a-z])(shift|alt|ctrl|cmd)([^a-z]|$)`)
)

// fold lowercases, strips diacritics (NFD), maps Turkish dotless i to i and
// collapses whitespace. All term matching goes through it so "Ausverkauft"
// and "stokta yok" compare reliably.
func fold(s string) string {
	s = strings.ToLower(s)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(t, s); err == nil {
		s = out
	}
	s = strings.ReplaceAll(s, "ı", "i")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// foldCompact folds and removes everything but letters and digits, for
// matching structured tokens like "https://schema.org/OutOfStock".
func foldCompact(s string) string {
	return nonAlnumRe.ReplaceAllString(fold(s), "")
}

// containsModifier reports keyboard-modifier words in folded text. Amazon
// renders shortcut hints ("Alt+Shift+C to add to cart") that must not count
// as purchase controls.
func containsModifier(folded string) bool {
	return modifierRe.MatchString(folded)
}

// Structured availability tokens, matched against foldCompact output.
// Out-of-stock tokens are checked first: "notinstock" contains "instock".
var structuredOutTokens = []string{
	"outofstock",
	"soldout",
	"discontinued",
	"currentlyunavailable",
	"temporarilyunavailable",
	"notinstock",
	"unavailable",
	"preorder",
	"backorder",
}

var structuredInTokens = []string{
	"instock",
	"limitedavailability",
	"availablefororder",
}

// availTerm is one multilingual availability phrase. Strong terms are
// unambiguous phrasings and score higher.
type availTerm struct {
	text   string
	strong bool
}

// outOfStockTerms are scanned before inStockTerms: several in-stock phrases
// are substrings of their negated forms ("stokta" in "stokta yok").
var outOfStockTerms = []availTerm{
	{"out of stock", true},
	{"sold out", true},
	{"currently unavailable", true},
	{"temporarily out of stock", true},
	{"no longer available", true},
	{"stokta yok", true},
	{"stokta bulunmamaktadir", true},
	{"tukendi", false},
	{"mevcut degil", true},
	{"gecici olarak temin edilemiyor", true},
	{"ausverkauft", true},
	{"nicht auf lager", true},
	{"nicht verfugbar", false},
	{"agotado", false},
	{"no disponible", true},
	{"rupture de stock", true},
	{"indisponible", false},
	{"esgotado", false},
	{"esaurito", false},
	{"non disponibile", true},
	{"niet op voorraad", true},
	{"uitverkocht", false},
	{"brak w magazynie", true},
	{"niedostepny", false},
	{"net v nalichii", true},
}

var inStockTerms = []availTerm{
	{"in stock", true},
	{"stokta", false},
	{"stokta var", true},
	{"sepete ekle", true},
	{"hemen al", false},
	{"auf lager", true},
	{"verfugbar", false},
	{"op voorraad", true},
	{"disponible", false},
	{"en stock", true},
	{"disponivel", false},
	{"disponibile", false},
	{"dostepny", false},
	{"v nalichii", true},
	{"add to cart", true},
	{"ready to ship", true},
}

// Textual term base scores by strength class.
const (
	oosTermScore       = 60
	oosTermScoreStrong = 70
	isTermScore        = 54
	isTermScoreStrong  = 62
)

// matchTermList returns the best-scoring term contained in folded text.
func matchTermList(folded string, terms []availTerm, weak, strong int) (string, int, bool) {
	best := ""
	score := 0
	for _, t := range terms {
		if !strings.Contains(folded, t.text) {
			continue
		}
		s := weak
		if t.strong {
			s = strong
		}
		if s > score {
			score = s
			best = t.text
		}
	}
	return best, score, best != ""
}

// Purchase-intent tokens for action elements, folded form.
var purchaseTokens = []string{
	"add to cart",
	"add to basket",
	"add to bag",
	"buy now",
	"buy it now",
	"checkout",
	"addtocart",
	"buynow",
	"sepete ekle",
	"sepete at",
	"hemen al",
	"satin al",
	"in den warenkorb",
	"ajouter au panier",
	"aggiungi al carrello",
	"comprar",
}

// Buying-options affordances: a page offering only third-party listings.
var buyingOptionsTokens = []string{
	"see all buying options",
	"all buying options",
	"buying options",
	"satin alma secenekleri",
	"kaufoptionen",
}

var notifyTokens = []string{
	"notify me",
	"email me",
	"haber ver",
	"when available",
}

var variantPromptTokens = []string{
	"select size",
	"choose size",
	"select a size",
	"choose an option",
	"select an option",
	"select options",
	"beden sec",
	"numara sec",
	"renk sec",
}

// variantAttrRe spots size/color semantics in select-element attributes.
var variantAttrRe = regexp.MustCompile(`size|beden|numara|renk|color|colour|variant|option`)

// amazonStrongOOSPhrases are matched against a compact folded blob built
// from the availability box, title and meta description (arbitration rule
// for Amazon pages whose signals are otherwise inconclusive).
var amazonStrongOOSPhrases = []string{
	"currentlyunavailable",
	"wedontknowwhenorif",
	"temporarilyoutofstock",
	"outofstock",
	"suanmevcutdegil",
	"suandamevcutdegil",
	"mevcutdegil",
}

func containsAny(s string, tokens []string) (string, bool) {
	for _, tok := range tokens {
		if strings.Contains(s, tok) {
			return tok, true
		}
	}
	return "", false
}
