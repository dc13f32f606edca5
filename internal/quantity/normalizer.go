// Package quantity turns free-text product names into a canonical quantity
// string such as "2 kg", "60 capsules" or "2 x 500g".
package quantity

import (
	"regexp"
	"strings"

	"sjsage522/harvester/internal/product"
)

// Rule is one pattern of the cascade. Format builds the result from the
// submatches of Pattern.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Format  func(m []string) string
}

// Phrase maps a whitespace-stripped literal to its canonical quantity.
type Phrase struct {
	Literal  string
	Quantity string
}

// count matches a whole number with optional thousands separators, number
// adds an optional decimal part
const (
	count  = `(\d{1,3}(?:,\d{3})+|\d+)`
	number = `((?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?)`
)

// amount drops thousands separators from a matched amount
func amount(s string) string {
	return strings.ReplaceAll(s, ",", "")
}

func unit(name, pattern, canonical string) Rule {
	return Rule{
		Name:    name,
		Pattern: regexp.MustCompile(pattern),
		Format:  func(m []string) string { return amount(m[1]) + " " + canonical },
	}
}

// Rules is evaluated top to bottom and the first match wins. The multi-pack
// rule must stay ahead of the weight and volume rules because "2 x 500g"
// also contains a plain "500g".
var Rules = []Rule{
	{
		Name:    "multi-pack",
		Pattern: regexp.MustCompile(count + `\s*[x×]\s*` + number + `\s*(kg|g|mg|lb|oz|ml|l|capsules?|tablets?|servings?)\b`),
		Format:  func(m []string) string { return amount(m[1]) + " x " + amount(m[2]) + m[3] },
	},

	unit("kg", number+`\s*(?:kg|kgs|kilograms?|kilos?)\b`, "kg"),
	unit("g", number+`\s*(?:g|gm|gms|grams?)\b`, "g"),
	unit("mg", number+`\s*(?:mg|milligrams?)\b`, "mg"),
	unit("lb", number+`\s*(?:lbs?|pounds?)\b`, "lb"),
	unit("oz", number+`\s*(?:oz|ounces?)\b`, "oz"),

	unit("l", number+`\s*(?:l|litres?|liters?)\b`, "L"),
	unit("ml", number+`\s*(?:ml|millilitres?|milliliters?)\b`, "ml"),

	unit("capsules", count+`\s*(?:capsules?|caps?)\b`, "capsules"),
	unit("tablets", count+`\s*(?:tablets?|tabs?)\b`, "tablets"),
	unit("pills", count+`\s*(?:pills?)\b`, "pills"),
	unit("pieces", count+`\s*(?:pieces?|pcs?)\b`, "pieces"),
	unit("servings", count+`\s*(?:servings?)\b`, "servings"),

	unit("pack", count+`\s*(?:packs?|pk)\b`, "pack"),
	unit("bottle", count+`\s*(?:bottles?)\b`, "bottle"),
	unit("jar", count+`\s*(?:jars?)\b`, "jar"),
	unit("tub", count+`\s*(?:tubs?)\b`, "tub"),
	unit("scoops", count+`\s*(?:scoops?)\b`, "scoops"),
}

// Phrases is the secondary pass for names the rules miss, usually because
// the unit is glued to the next word. Longer literals come first so that
// "10lb" is not shadowed by a shorter entry.
var Phrases = []Phrase{
	{"30capsules", "30 capsules"},
	{"60servings", "60 servings"},
	{"30servings", "30 servings"},
	{"60tablets", "60 tablets"},
	{"90caps", "90 capsules"},
	{"500ml", "500 ml"},
	{"2268g", "2268 g"},
	{"10lb", "10 lb"},
	{"500g", "500 g"},
	{"250g", "250 g"},
	{"907g", "907 g"},
	{"1kg", "1 kg"},
	{"2kg", "2 kg"},
	{"5kg", "5 kg"},
	{"2lb", "2 lb"},
	{"5lb", "5 lb"},
	{"1l", "1 L"},
}

// Normalize returns the canonical quantity found in text, or
// product.QuantityUnknown. It never fails.
func Normalize(text string) string {
	lower := strings.ToLower(text)
	if strings.TrimSpace(lower) == "" {
		return product.QuantityUnknown
	}

	for _, rule := range Rules {
		if m := rule.Pattern.FindStringSubmatch(lower); m != nil {
			return rule.Format(m)
		}
	}

	stripped := strings.Join(strings.Fields(lower), "")
	for _, p := range Phrases {
		if strings.Contains(stripped, p.Literal) {
			return p.Quantity
		}
	}

	return product.QuantityUnknown
}
