package processor

import (
	"encoding/json"
	"fmt"
	"strings"

	solana "github.com/gagliardetto/solana-go"
	"github.com/xeipuuv/gojsonschema"
)

// The merchant's opaque data field doubles as the subscription package table:
// a JSON object with a "packages" array. Merchants without subscriptions keep
// arbitrary JSON there and the engine never looks at it.

// Package is one subscription tier. Duration and the optional trial window are
// in seconds; Price is the full price for one duration.
type Package struct {
	Name     string `json:"name"`
	Duration int64  `json:"duration"`
	Price    uint64 `json:"price"`
	Trial    *int64 `json:"trial,omitempty"`
}

// Packages is the merchant package table.
type Packages struct {
	Packages []Package `json:"packages"`
}

const packagesKey = `"packages"`

const packagesSchema = `{
	"type": "object",
	"properties": {
		"packages": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"name": {"type": "string", "minLength": 1},
					"duration": {"type": "integer", "minimum": 1},
					"price": {"type": "integer", "minimum": 0},
					"trial": {"type": "integer", "minimum": 0}
				},
				"required": ["name", "duration", "price"],
				"additionalProperties": true
			}
		}
	},
	"required": ["packages"]
}`

// DeclaresPackages reports whether merchant data carries a package table.
func DeclaresPackages(data string) bool {
	return strings.Contains(data, packagesKey)
}

// ValidateMerchantData checks that data is well-formed JSON and, when it
// declares a package table, that the table matches the documented shape.
func ValidateMerchantData(data string) error {
	if !json.Valid([]byte(data)) {
		return fmt.Errorf("merchant data is not valid JSON: %w", ErrInvalidAccountData)
	}
	if !DeclaresPackages(data) {
		return nil
	}
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(packagesSchema),
		gojsonschema.NewStringLoader(data),
	)
	if err != nil {
		return fmt.Errorf("package table: %w", ErrInvalidAccountData)
	}
	if !result.Valid() {
		return fmt.Errorf("package table %s: %w", result.Errors()[0], ErrInvalidAccountData)
	}
	return nil
}

// ParsePackages extracts the package table from merchant data.
func ParsePackages(data string) (*Packages, error) {
	var table Packages
	if err := json.Unmarshal([]byte(data), &table); err != nil {
		return nil, fmt.Errorf("package table: %w", ErrInvalidAccountData)
	}
	return &table, nil
}

// Find returns the first package with the given name. Duplicate names resolve
// to the first entry.
func (t *Packages) Find(name string) (*Package, bool) {
	for i := range t.Packages {
		if t.Packages[i].Name == name {
			return &t.Packages[i], true
		}
	}
	return nil, false
}

// TrialSeconds returns the trial window, zero when the package has none.
func (p *Package) TrialSeconds() int64 {
	if p.Trial == nil {
		return 0
	}
	return *p.Trial
}

// packageName strips the qualifier from a subscription name. Names arrive as
// "<qualifier>:<package>"; a bare name is used as-is.
func packageName(name string) string {
	if idx := strings.Index(name, ":"); idx >= 0 {
		return name[idx+1:]
	}
	return name
}

// findMerchantPackage resolves a subscription name against a merchant's
// package table.
func findMerchantPackage(merchant *MerchantAccount, name string) (*Package, error) {
	table, err := ParsePackages(merchant.Data)
	if err != nil {
		return nil, err
	}
	pkg, ok := table.Find(packageName(name))
	if !ok {
		return nil, ErrUnknownPackage
	}
	return pkg, nil
}

// orderSubscriptionLink is stored in the order's data field to tie a checkout
// to the subscription it pays for.
type orderSubscriptionLink struct {
	Subscription string `json:"subscription"`
}

// orderSubscription extracts the linked subscription address from order data,
// if one is recorded.
func orderSubscription(data string) (solana.PublicKey, bool) {
	var link orderSubscriptionLink
	if err := json.Unmarshal([]byte(data), &link); err != nil || link.Subscription == "" {
		return solana.PublicKey{}, false
	}
	addr, err := solana.PublicKeyFromBase58(link.Subscription)
	if err != nil {
		return solana.PublicKey{}, false
	}
	return addr, true
}
