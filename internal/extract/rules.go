package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// Rule is one candidate in a field's selector cascade. Apply is pure: the same
// document always yields the same result.
type Rule struct {
	// Selector is a CSS selector evaluated against the whole document.
	Selector string
	// MinRunes rejects matches whose trimmed text is not longer than this.
	MinRunes int
	// Accept, when set, must approve the trimmed text.
	Accept func(text string) bool
}

// Apply returns the text of the first element matched by the rule.
func (r Rule) Apply(doc *goquery.Document) (string, bool) {
	var (
		out   string
		found bool
	)
	doc.Find(r.Selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := collapse(s.Text())
		if !r.accepts(text) {
			return true
		}
		out, found = text, true
		return false
	})
	return out, found
}

func (r Rule) accepts(text string) bool {
	if text == "" {
		return false
	}
	if r.MinRunes > 0 && utf8.RuneCountInString(text) <= r.MinRunes {
		return false
	}
	if r.Accept != nil && !r.Accept(text) {
		return false
	}
	return true
}

// Field is an ordered cascade of rules. The first rule producing text wins.
type Field struct {
	Name   string
	Prefix string
	Rules  []Rule
}

// Apply evaluates the cascade and returns the winning text without prefix.
func (f Field) Apply(doc *goquery.Document) (string, bool) {
	for _, rule := range f.Rules {
		if text, ok := rule.Apply(doc); ok {
			return text, true
		}
	}
	return "", false
}

// ListRule collects every matching list container in document order.
type ListRule struct {
	Selector string
	MinRunes int
}

// Apply returns the text of each qualifying container. Items of a list are
// rendered one per line. A match nested inside another match is already
// covered by the outer container and is skipped.
func (r ListRule) Apply(doc *goquery.Document) []string {
	var out []string
	doc.Find(r.Selector).Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered(r.Selector).Length() > 0 {
			return
		}
		if utf8.RuneCountInString(collapse(s.Text())) <= r.MinRunes {
			return
		}
		if text := listText(s); text != "" {
			out = append(out, text)
		}
	})
	return out
}

var currencyPattern = regexp.MustCompile(`(?i)(₫|vn[dđ]|\$|\d\s*đ)`)

// HasCurrency reports whether text carries a currency marker.
func HasCurrency(text string) bool {
	return currencyPattern.MatchString(text)
}

// NamePrefix and PricePrefix label the name and price blocks.
const (
	NamePrefix  = "Tên sản phẩm: "
	PricePrefix = "Giá: "
)

// DefaultFields returns the cascades for name, price and description, in output order.
func DefaultFields() []Field {
	return []Field{
		{
			Name:   "name",
			Prefix: NamePrefix,
			Rules: []Rule{
				{Selector: ".product-title"},
				{Selector: "h1"},
				{Selector: ".product-name"},
				{Selector: `[class*="product_title"], [class*="title"]`},
			},
		},
		{
			Name:   "price",
			Prefix: PricePrefix,
			Rules: []Rule{
				{Selector: ".product-price", Accept: HasCurrency},
				{Selector: ".price", Accept: HasCurrency},
				{Selector: `[class*="price"]`, Accept: HasCurrency},
			},
		},
		{
			Name: "description",
			Rules: []Rule{
				{Selector: ".product-description"},
				{Selector: ".product-desc, #description, .description"},
				{Selector: `[class*="description"]`},
				{Selector: "p", MinRunes: 30},
			},
		},
	}
}

// DefaultDetails matches specification lists and detail containers.
func DefaultDetails() ListRule {
	return ListRule{
		Selector: ".product-details ul, .product-details ol, .product-detail ul, " +
			".product-info ul, .product-specs, .product-attributes, ul.specifications",
		MinRunes: 20,
	}
}

func listText(s *goquery.Selection) string {
	items := s.Find("li")
	if items.Length() == 0 {
		return collapse(s.Text())
	}
	lines := make([]string, 0, items.Length())
	items.Each(func(_ int, li *goquery.Selection) {
		if text := ownText(li); text != "" {
			lines = append(lines, "- "+text)
		}
	})
	return strings.Join(lines, "\n")
}

// ownText is the text of li without its nested lists, whose items get their
// own lines.
func ownText(li *goquery.Selection) string {
	own := li.Clone()
	own.Find("ul, ol").Remove()
	return collapse(own.Text())
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
