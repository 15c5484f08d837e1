package ingest

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"menuqa/pricevalidator/internal/domain"
	apperr "menuqa/pricevalidator/pkg/errors"
)

type locationsFile struct {
	Provinces map[string][]storeEntry `yaml:"provinces"`
}

type storeEntry struct {
	StoreName   string `yaml:"store_name"`
	City        string `yaml:"city"`
	Address     string `yaml:"address"` // legacy key, city preferred
	PricingTier string `yaml:"pricing_tier"`
}

// LoadLocations reads the store roster from a YAML file keyed by province
// code. An unknown province or pricing tier is a configuration error; runs
// against a half-valid roster produce reports that look complete but are not.
func LoadLocations(path string) ([]domain.Location, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.NewConfiguration(fmt.Sprintf("locations file %s", path), err)
	}

	var file locationsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, apperr.NewConfiguration(fmt.Sprintf("locations file %s is not valid YAML", path), err)
	}
	if len(file.Provinces) == 0 {
		return nil, apperr.NewConfiguration(fmt.Sprintf("locations file %s has no provinces section", path), nil)
	}

	provinces := make([]string, 0, len(file.Provinces))
	for code := range file.Provinces {
		provinces = append(provinces, code)
	}
	sort.Strings(provinces)

	var locations []domain.Location
	for _, code := range provinces {
		for _, store := range file.Provinces[code] {
			address := store.City
			if address == "" {
				address = store.Address
			}

			name := store.StoreName
			if name == "" {
				name = code + " Store"
			}

			if store.PricingTier != "" && !domain.ValidPricingLevel(store.PricingTier) {
				return nil, apperr.NewConfiguration(
					fmt.Sprintf("store %q has unknown pricing tier %q", name, store.PricingTier), nil)
			}

			loc, err := domain.NewLocation(name, address, code, domain.PricingLevel(store.PricingTier))
			if err != nil {
				return nil, apperr.NewConfiguration("invalid store entry", err)
			}
			locations = append(locations, loc)
		}
	}
	return locations, nil
}

// FilterProvince returns the locations in the given province, or everything
// when the filter is empty.
func FilterProvince(locations []domain.Location, province string) []domain.Location {
	if province == "" {
		return locations
	}
	var out []domain.Location
	for _, loc := range locations {
		if strings.EqualFold(loc.Province, province) {
			out = append(out, loc)
		}
	}
	return out
}
