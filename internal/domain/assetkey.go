package domain

import (
	"strings"
	"unicode"
)

// AssetKey derives the canonical duplicate-detection key for an asset. The
// function is pure: the same logical asset always yields the same key no
// matter how the identifier was cased or padded, and distinct assets never
// collide.
func AssetKey(marketType MarketType, category Category, country, identifier string) string {
	switch marketType {
	case MarketTypeStock:
		return "stock:" + lowerTrim(country) + ":" + lowerTrim(identifier)
	case MarketTypeIndex:
		return "index:" + lowerTrim(identifier)
	case MarketTypeGlobal:
		switch category {
		case CategoryCrypto:
			return "crypto:" + strings.ToLower(stripNonAlnum(strings.ToUpper(identifier)))
		case CategoryForex:
			base := strings.ToUpper(strings.TrimSpace(identifier))
			if len(base) > 3 {
				base = base[:3]
			}
			return "forex:" + strings.ToLower(base) + "_usd"
		case CategoryCommodities:
			return "commodity:" + strings.ToLower(CanonicalCommodity(identifier))
		}
	}
	return "global:" + lowerTrim(identifier)
}

// CanonicalCommodity collapses the common spellings of the four supported
// commodities onto their canonical symbols (XAU, XAG, WTI, NG). Unknown
// identifiers pass through uppercased so they still key deterministically.
func CanonicalCommodity(identifier string) string {
	id := strings.ToUpper(strings.TrimSpace(identifier))
	switch {
	case strings.Contains(id, "GOLD"):
		return "XAU"
	case strings.Contains(id, "SILVER"):
		return "XAG"
	case strings.Contains(id, "CRUDE"), strings.Contains(id, "OIL"), strings.Contains(id, "WTI"):
		return "WTI"
	case strings.Contains(id, "NATURAL"), strings.Contains(id, "GAS"), id == "NG":
		return "NG"
	}
	return id
}

func lowerTrim(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func stripNonAlnum(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
