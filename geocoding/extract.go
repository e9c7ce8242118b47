// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package geocoding

import (
	"slices"
	"strings"

	"github.com/jcodagnone/barrios/utils/textutils"
)

// Component types used by the extractors.
const (
	TypeNeighborhood       = "neighborhood"
	TypeSublocality        = "sublocality"
	TypeSublocalityLevel1  = "sublocality_level_1"
	TypeLocality           = "locality"
	TypeAdministrativeArea = "administrative_area_level_3"
)

var (
	barrioTypes        = []string{TypeSublocality, TypeSublocalityLevel1, TypeLocality}
	comunaFallbackType = []string{TypeAdministrativeArea, TypeSublocalityLevel1, TypeSublocality}
	comunaKeywords     = []string{"comuna", "corregimiento"}
)

// AddressComponent is one element of a reverse geocoding answer.
type AddressComponent struct {
	LongName  string   `json:"long_name"`
	ShortName string   `json:"short_name"`
	Types     []string `json:"types"`
}

// HasType reports whether the component is tagged with t.
func (c AddressComponent) HasType(t string) bool {
	return slices.Contains(c.Types, t)
}

// Name returns the display name of the component.
func (c AddressComponent) Name() string {
	return strings.TrimSpace(c.LongName)
}

func firstOfType(components []AddressComponent, t string, accept func(string) bool) (string, bool) {
	for _, c := range components {
		if c.HasType(t) && c.Name() != "" && accept(c.Name()) {
			return c.Name(), true
		}
	}

	return "", false
}

func acceptAll(string) bool { return true }

// ExtractBarrio returns the name of the first component tagged sublocality,
// then sublocality_level_1, then locality.
func ExtractBarrio(components []AddressComponent) (string, bool) {
	for _, t := range barrioTypes {
		if name, ok := firstOfType(components, t, acceptAll); ok {
			return name, true
		}
	}

	return "", false
}

// ExtractComuna returns the comuna/corregimiento candidate of components.
//
// The neighborhood component is preferred. When it is missing or just names
// the city, any component whose name mentions COMUNA or CORREGIMIENTO wins,
// then the first administrative_area_level_3, sublocality_level_1 or
// sublocality that is not the city. Failing all of that the city name is
// returned as is and callers must treat it as ambiguous.
func ExtractComuna(components []AddressComponent, city string) (string, bool) {
	neighborhood, found := firstOfType(components, TypeNeighborhood, acceptAll)
	if found && !IsCity(neighborhood, city) {
		return neighborhood, true
	}

	for _, c := range components {
		for _, keyword := range comunaKeywords {
			if textutils.ContainsFold(c.Name(), keyword) {
				return c.Name(), true
			}
		}
	}

	notCity := func(name string) bool { return !IsCity(name, city) }

	for _, t := range comunaFallbackType {
		if name, ok := firstOfType(components, t, notCity); ok {
			return name, true
		}
	}

	return neighborhood, found
}

// IsCity reports whether label names the city itself, ignoring case and accents.
func IsCity(label, city string) bool {
	return city != "" && textutils.EqualFold(label, city)
}
