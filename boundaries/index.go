// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package boundaries loads the reference polygons of the two administrative
// taxonomies and answers point-in-polygon queries against them.
package boundaries

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/dhconnelly/rtreego"
	"github.com/jcodagnone/barrios/spatial"
)

// Taxonomy identifies one of the two disjoint administrative label sets.
type Taxonomy string

const (
	// BarrioVereda is the finer grained urban/rural neighborhood unit.
	BarrioVereda Taxonomy = "barrio_vereda"
	// ComunaCorregimiento is the urban/rural district unit.
	ComunaCorregimiento Taxonomy = "comuna_corregimiento"
)

const (
	dimensions     = 2
	minChildren    = 4
	maxChildren    = 16
	queryTolerance = 1e-9
)

// ErrUnknownTaxonomy is returned for taxonomy names other than the two known ones.
var ErrUnknownTaxonomy = errors.New("unknown taxonomy")

// ParseTaxonomy accepts the canonical names and the short "barrios"/"comunas" forms.
func ParseTaxonomy(s string) (Taxonomy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(BarrioVereda), "barrio", "barrios", "vereda", "veredas":
		return BarrioVereda, nil
	case string(ComunaCorregimiento), "comuna", "comunas", "corregimiento", "corregimientos":
		return ComunaCorregimiento, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTaxonomy, s)
	}
}

// Boundary is a labeled reference polygon.
type Boundary struct {
	Label string
	Shape spatial.MultiPolygon
}

// Source yields boundaries in load order.
type Source interface {
	Each(callback func(Boundary) error) error
}

// Boundaries is an in memory Source.
type Boundaries []Boundary

// Each calls callback for every boundary, stopping at the first error.
func (b Boundaries) Each(callback func(Boundary) error) error {
	for i := range b {
		if err := callback(b[i]); err != nil {
			return err
		}
	}

	return nil
}

// item is the rtree entry for one boundary.
type item struct {
	order    int
	boundary Boundary
	rect     rtreego.Rect
}

func (it *item) Bounds() rtreego.Rect {
	return it.rect
}

// Index answers point-in-polygon queries for one taxonomy. It is immutable
// once loaded and safe for concurrent use.
type Index struct {
	taxonomy Taxonomy
	items    []*item
	tree     *rtreego.Rtree
	labels   map[string]bool
}

// LoadBarrios builds the barrio/vereda index.
func LoadBarrios(src Source) (*Index, error) {
	return Load(BarrioVereda, src)
}

// LoadComunas builds the comuna/corregimiento index.
func LoadComunas(src Source) (*Index, error) {
	return Load(ComunaCorregimiento, src)
}

// Load builds an index for taxonomy from src. Boundaries without a label or
// with an empty shape are skipped and logged.
func Load(taxonomy Taxonomy, src Source) (*Index, error) {
	idx := &Index{
		taxonomy: taxonomy,
		labels:   make(map[string]bool),
	}

	spatials := make([]rtreego.Spatial, 0)

	err := src.Each(func(b Boundary) error {
		if strings.TrimSpace(b.Label) == "" || len(b.Shape) == 0 {
			log.Printf("⚠️  %s: skipping boundary #%d without label or geometry", taxonomy, len(idx.items))

			return nil
		}

		rect, err := toRect(b.Shape.Bounds())
		if err != nil {
			return fmt.Errorf("%s boundary %q: %w", taxonomy, b.Label, err)
		}

		it := &item{order: len(idx.items), boundary: b, rect: rect}
		idx.items = append(idx.items, it)
		idx.labels[b.Label] = true
		spatials = append(spatials, it)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading %s boundaries: %w", taxonomy, err)
	}

	idx.tree = rtreego.NewTree(dimensions, minChildren, maxChildren, spatials...)

	return idx, nil
}

func toRect(box spatial.BoundingBox) (rtreego.Rect, error) {
	// rtreego intersections are strict, pad the box so edges still match
	return rtreego.NewRectFromPoints(
		rtreego.Point{box.MinLat - queryTolerance, box.MinLng - queryTolerance},
		rtreego.Point{box.MaxLat + queryTolerance, box.MaxLng + queryTolerance},
	)
}

// Taxonomy returns the taxonomy of the index.
func (idx *Index) Taxonomy() Taxonomy {
	return idx.taxonomy
}

// Len returns the number of loaded boundaries.
func (idx *Index) Len() int {
	return len(idx.items)
}

// Has reports whether label is one of the reference labels, by exact match.
func (idx *Index) Has(label string) bool {
	return idx.labels[label]
}

// Labels returns the reference labels in load order, without duplicates.
func (idx *Index) Labels() []string {
	seen := make(map[string]bool, len(idx.items))
	labels := make([]string, 0, len(idx.items))

	for _, it := range idx.items {
		if seen[it.boundary.Label] {
			continue
		}

		seen[it.boundary.Label] = true
		labels = append(labels, it.boundary.Label)
	}

	return labels
}

// ContainingLabel returns the label of the first boundary, in load order,
// containing p. found is false when no boundary contains it.
func (idx *Index) ContainingLabel(p spatial.Point) (string, bool) {
	candidates := idx.tree.SearchIntersect(rtreego.Point{p.Lat, p.Lng}.ToRect(queryTolerance))
	if len(candidates) == 0 {
		return "", false
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].(*item).order < candidates[j].(*item).order
	})

	var match *item

	for _, c := range candidates {
		it := c.(*item)
		if !it.boundary.Shape.Contains(p) {
			continue
		}

		if match == nil {
			match = it

			continue
		}

		if it.boundary.Label != match.boundary.Label {
			log.Printf("⚠️  %s: overlapping boundaries %q and %q at %v, keeping %q",
				idx.taxonomy, match.boundary.Label, it.boundary.Label, p, match.boundary.Label)
		}

		break
	}

	if match == nil {
		return "", false
	}

	return match.boundary.Label, true
}

// Reference bundles the indexes of both taxonomies.
type Reference struct {
	Barrios *Index
	Comunas *Index
}

// Index returns the index for taxonomy.
func (r *Reference) Index(taxonomy Taxonomy) *Index {
	if taxonomy == ComunaCorregimiento {
		return r.Comunas
	}

	return r.Barrios
}

// Has reports whether label belongs to taxonomy.
func (r *Reference) Has(taxonomy Taxonomy, label string) bool {
	idx := r.Index(taxonomy)

	return idx != nil && idx.Has(label)
}
