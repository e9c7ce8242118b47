// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package textutils normalizes the Spanish labels of the reference
// taxonomies and the geocoding responses.
package textutils

import (
	"strings"
	"unicode"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks drops combining marks after decomposition, so "ñ" folds to "n".
func stripMarks(s string) string {
	folded, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		s,
	)
	if err != nil {
		return s
	}

	return folded
}

// CollapseSpaces trims s and replaces every run of white space with a single space.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// FoldKey is the comparison key for labels: no accents, lowercase, single spaced.
// "  El   Peñón " and "EL PEÑON" share the key "el penon".
func FoldKey(s string) string {
	return stripMarks(strings.ToLower(CollapseSpaces(s)))
}

// EqualFold reports whether a and b are the same label ignoring case, accents and spacing.
func EqualFold(a, b string) bool {
	return FoldKey(a) == FoldKey(b)
}

// ContainsFold reports whether substr is within s ignoring case and accents.
func ContainsFold(s, substr string) bool {
	return strings.Contains(FoldKey(s), FoldKey(substr))
}

var counts = message.NewPrinter(language.MustParse("es-CO"))

// FormatCount formats n with Colombian digit grouping, 1234567 is "1.234.567".
func FormatCount(n int64) string {
	return counts.Sprintf("%d", n)
}
