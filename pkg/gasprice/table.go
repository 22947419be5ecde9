// Package gasprice holds regional fuel prices and derives per-kilometre driving costs.
package gasprice

import (
	"sort"
	"strings"
)

// DefaultPricePerGallon is used when no table entry matches a location.
const DefaultPricePerGallon = 3.50

// LocationContext narrows a price lookup to a country and, optionally, a region.
type LocationContext struct {
	Country string `json:"country"`
	Region  string `json:"region,omitempty"`
}

// Entry is one row of the price table. An empty Region is the country aggregate.
type Entry struct {
	Country        string  `json:"country" yaml:"country"`
	Region         string  `json:"region,omitempty" yaml:"region,omitempty"`
	PricePerGallon float64 `json:"pricePerGallon" yaml:"price_per_gallon"`
}

// Match names the fallback level that produced a price.
type Match string

const (
	MatchRegion  Match = "region"
	MatchCountry Match = "country"
	MatchDefault Match = "default"
)

type entryKey struct {
	country string
	region  string
}

// Table is an immutable price lookup. Safe for concurrent use.
type Table struct {
	prices       map[entryKey]float64
	entries      []Entry
	defaultPrice float64
}

// NewTable builds a table from entries. Later duplicates override earlier ones.
// A non-positive defaultPrice selects DefaultPricePerGallon.
func NewTable(entries []Entry, defaultPrice float64) *Table {
	if defaultPrice <= 0 {
		defaultPrice = DefaultPricePerGallon
	}
	t := &Table{
		prices:       make(map[entryKey]float64, len(entries)),
		defaultPrice: defaultPrice,
	}
	for _, e := range entries {
		if e.PricePerGallon <= 0 {
			continue
		}
		k := entryKey{country: strings.ToUpper(strings.TrimSpace(e.Country)), region: strings.TrimSpace(e.Region)}
		if _, dup := t.prices[k]; !dup {
			t.entries = append(t.entries, Entry{Country: k.country, Region: k.region})
		}
		t.prices[k] = e.PricePerGallon
	}
	for i := range t.entries {
		e := &t.entries[i]
		e.PricePerGallon = t.prices[entryKey{country: e.Country, region: e.Region}]
	}
	sort.SliceStable(t.entries, func(i, j int) bool {
		if t.entries[i].Country != t.entries[j].Country {
			return t.entries[i].Country < t.entries[j].Country
		}
		return t.entries[i].Region < t.entries[j].Region
	})
	return t
}

// DefaultTable returns the compiled-in price table.
func DefaultTable() *Table {
	return NewTable(defaultEntries, DefaultPricePerGallon)
}

// DefaultPrice returns the global fallback price.
func (t *Table) DefaultPrice() float64 {
	return t.defaultPrice
}

// Entries returns a copy of the table rows ordered by country then region.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Lookup resolves a price for loc, trying (country, region), then the
// country aggregate, then the global default. It never fails.
func (t *Table) Lookup(loc *LocationContext) (float64, Match) {
	if loc == nil {
		return t.defaultPrice, MatchDefault
	}
	country := strings.ToUpper(strings.TrimSpace(loc.Country))
	if country == "" {
		return t.defaultPrice, MatchDefault
	}
	if loc.Region != "" {
		if p, ok := t.prices[entryKey{country: country, region: loc.Region}]; ok {
			return p, MatchRegion
		}
	}
	if p, ok := t.prices[entryKey{country: country}]; ok {
		return p, MatchCountry
	}
	return t.defaultPrice, MatchDefault
}

// PriceFor returns the price per gallon for loc.
func (t *Table) PriceFor(loc *LocationContext) float64 {
	p, _ := t.Lookup(loc)
	return p
}
