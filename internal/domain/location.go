package domain

import (
	"fmt"
	"strings"
)

// PricingLevel is a geographic price zone. Levels are finer-grained than
// provinces: a province can split into more than one level by city.
type PricingLevel string

const (
	PL1  PricingLevel = "PL1"
	PL2  PricingLevel = "PL2"
	PL2B PricingLevel = "PL2-B"
	PL3  PricingLevel = "PL3"
	PL4  PricingLevel = "PL4"
)

// provinceLevels maps a province code to its default pricing level.
var provinceLevels = map[string]PricingLevel{
	"BC": PL1,
	"AB": PL2,
	"SK": PL2,
	"MB": PL3,
	"ON": PL3,
	"QC": PL4,
	"NS": PL4,
	"NB": PL4,
	"YT": PL4,
	"NT": PL4,
}

// cityLevels overrides the province default for cities priced on their own
// level (remote/northern stores).
var cityLevels = map[string]PricingLevel{
	"fort mcmurray":  PL2B,
	"grande prairie": PL2B,
	"yellowknife":    PL4,
	"whitehorse":     PL4,
}

// Location is a configured store. Immutable once built.
type Location struct {
	StoreName    string
	Address      string
	Province     string
	ExplicitTier PricingLevel // optional override from configuration
}

// NewLocation validates the province code and returns a Location.
func NewLocation(storeName, address, province string, explicit PricingLevel) (Location, error) {
	code := strings.ToUpper(strings.TrimSpace(province))
	if _, ok := provinceLevels[code]; !ok {
		return Location{}, fmt.Errorf("unsupported province code %q for store %q", province, storeName)
	}
	return Location{
		StoreName:    storeName,
		Address:      address,
		Province:     code,
		ExplicitTier: explicit,
	}, nil
}

// City returns the city segment of the address. Roster entries carry either
// a bare "City, PROV" pair or a full street address ending in the city;
// trailing province and country tokens are stripped and the last remaining
// segment is the city.
func (l Location) City() string {
	parts := strings.Split(l.Address, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	for len(parts) > 1 {
		last := strings.ToUpper(parts[len(parts)-1])
		if last == "CANADA" || len(last) == 2 {
			parts = parts[:len(parts)-1]
			continue
		}
		break
	}
	return parts[len(parts)-1]
}

// PricingTier derives the location's pricing level: explicit override first,
// then city override, then the province default.
func (l Location) PricingTier() PricingLevel {
	if l.ExplicitTier != "" {
		return l.ExplicitTier
	}
	if lvl, ok := cityLevels[strings.ToLower(l.City())]; ok {
		return lvl
	}
	return provinceLevels[l.Province]
}

// ValidPricingLevel reports whether s names a known pricing level.
func ValidPricingLevel(s string) bool {
	switch PricingLevel(s) {
	case PL1, PL2, PL2B, PL3, PL4:
		return true
	}
	return false
}
