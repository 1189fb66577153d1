// Package views computes aggregate views over the full document set and
// renders derived documents. Everything here is a pure function of its
// inputs; reading and writing files is left to the caller.
package views

import (
	"sort"
	"strings"

	"github.com/starford/brain/internal/document"
)

// HighPriorityThreshold is the ship factor from which a document counts as
// high priority.
const HighPriorityThreshold = 8

// RootCategory labels documents that sit directly under the root.
const RootCategory = "root"

// Stats are the aggregate counts over a document set.
type Stats struct {
	Total        int            `json:"total"`
	ByCategory   map[string]int `json:"by_category"`
	ByType       map[string]int `json:"by_type"`
	BySubtype    map[string]int `json:"by_subtype"`
	Deprecated   int            `json:"deprecated"`
	HighPriority int            `json:"high_priority"`
}

// Statistics counts docs per top-level category, type and subtype, and
// counts deprecated and high-priority documents.
func Statistics(docs []document.Document) Stats {
	st := Stats{
		ByCategory: make(map[string]int),
		ByType:     make(map[string]int),
		BySubtype:  make(map[string]int),
	}
	for _, d := range docs {
		st.Total++
		st.ByCategory[category(d.Path)]++
		if d.Meta.Type != nil {
			st.ByType[string(*d.Meta.Type)]++
		}
		if d.Meta.Subtype != nil {
			st.BySubtype[*d.Meta.Subtype]++
		}
		if d.Meta.IsDeprecated() {
			st.Deprecated++
		}
		if d.Meta.ShipFactorValue() >= HighPriorityThreshold {
			st.HighPriority++
		}
	}
	return st
}

func category(p string) string {
	if top := document.TopLevel(p); top != "" {
		return top
	}
	return RootCategory
}

// HighPriority returns the non-deprecated documents with a ship factor of at
// least min, in priority order.
func HighPriority(docs []document.Document, min int) []document.Document {
	var out []document.Document
	for _, d := range docs {
		if d.Meta.IsDeprecated() || d.Meta.ShipFactorValue() < min {
			continue
		}
		out = append(out, d)
	}
	SortByPriority(out)
	return out
}

// ByTag returns the documents carrying at least one of tags, in priority order.
func ByTag(docs []document.Document, tags []string) []document.Document {
	var out []document.Document
	for _, d := range docs {
		for _, t := range tags {
			if d.Meta.HasTag(t) {
				out = append(out, d)
				break
			}
		}
	}
	SortByPriority(out)
	return out
}

// ByCategory returns the documents whose path is rooted at prefix, in
// priority order. Deprecated documents are included.
func ByCategory(docs []document.Document, prefix string) []document.Document {
	prefix = strings.Trim(prefix, "/")
	var out []document.Document
	for _, d := range docs {
		if prefix == "" || d.Path == prefix || strings.HasPrefix(d.Path, prefix+"/") {
			out = append(out, d)
		}
	}
	SortByPriority(out)
	return out
}

// SortByPriority orders docs by descending ship factor. Equal ship factors
// are ordered by path.
func SortByPriority(docs []document.Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		a, b := docs[i].Meta.ShipFactorValue(), docs[j].Meta.ShipFactorValue()
		if a != b {
			return a > b
		}
		return docs[i].Path < docs[j].Path
	})
}
