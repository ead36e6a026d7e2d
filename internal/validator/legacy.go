package validator

import (
	"regexp"
	"strings"

	"github.com/verivolabs/verivo-engine/internal/domain"
)

// Legacy compatibility: rows written before asset_symbol existed carry the
// symbol only inside the asset key or a structured title of the form
// "Category: SYMBOL - Direction (...)". New rows always populate
// asset_symbol; this path can be deleted once old rows are migrated.

var legacyTitlePattern = regexp.MustCompile(`^\s*[^:]+:\s*(\S+)\s*-\s*(?:Up|Down)\b`)

// RecoverSymbol returns the provider symbol for a prediction, falling back
// to the legacy locations when asset_symbol is empty.
func RecoverSymbol(p domain.Prediction) (string, bool) {
	if s := strings.TrimSpace(p.AssetSymbol); s != "" {
		return s, true
	}
	if s, ok := symbolFromAssetKey(p.AssetKey); ok {
		return s, true
	}
	if m := legacyTitlePattern.FindStringSubmatch(p.Title); m != nil {
		return m[1], true
	}
	return "", false
}

// symbolFromAssetKey extracts the identifier segment of a canonical asset
// key. Keys are lowercased at derivation time, so the recovered symbol is
// uppercased for the provider APIs.
func symbolFromAssetKey(key string) (string, bool) {
	parts := strings.Split(key, ":")
	if len(parts) < 2 {
		return "", false
	}
	id := parts[len(parts)-1]
	if id == "" {
		return "", false
	}
	if parts[0] == "forex" {
		id = strings.TrimSuffix(id, "_usd")
	}
	return strings.ToUpper(id), true
}
