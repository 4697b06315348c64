// Package cachekey derives stable, collision-resistant cache identities for
// forecasting configurations.
//
// A Context captures every input that decides whether two forecast requests
// may share a trained model: the dataset coordinates (schema, table, column
// names), the model type and horizon, the item, the hyperparameter-tuning
// flag, and an ordered list of hierarchical filter dimensions. Raw inputs
// arrive inconsistently formatted (bracket-quoted identifiers, unordered
// filter selections, schema-qualified table names); Normalize folds them into
// one canonical form so that equivalent configurations always hash to the
// same key.
package cachekey

import (
	"sort"
	"strings"
)

// Dimension is one hierarchical filter dimension, identified by a short
// uppercase tag that becomes part of the key material.
//
// Values carries three distinguishable states: nil means the dimension is not
// in use at all, an empty non-nil slice means it is in use with nothing
// selected, and a non-empty slice is an actual selection. The first two must
// never collide in the derived key.
type Dimension struct {
	Name   string
	Values []string
}

// PlanningAreas builds the planning-area filter dimension.
func PlanningAreas(values []string) Dimension {
	return Dimension{Name: "PA", Values: values}
}

// Scenarios builds the scenario filter dimension.
func Scenarios(values []string) Dimension {
	return Dimension{Name: "SC", Values: values}
}

// Context is the full cache-key context for one item's forecasting
// configuration.
type Context struct {
	Schema      string
	Table       string
	DateCol     string
	ItemCol     string
	QtyCol      string
	ModelType   string
	HorizonDays int
	ItemID      string
	Tuning      bool
	Dimensions  []Dimension
}

// WithItem returns a copy of the context with ItemID replaced. Batch callers
// share one template context and substitute each item through this.
func (c Context) WithItem(item string) Context {
	c.ItemID = item
	return c
}

// Normalize returns the canonical form of the context. It is pure and total:
// malformed identifiers degrade to a best-effort cleanup rather than erroring.
//
// Rules:
//   - bracket and quote delimiters are stripped from identifiers, reversing
//     doubled-closing-bracket escaping ("[Foo]]]" becomes "Foo]")
//   - a schema-qualified table name keeps only the table part (the schema is
//     keyed through its own field)
//   - identifier case is preserved; only delimiters are trimmed
//   - dimension value lists are deduplicated and sorted, so selection order
//     never affects the key; nil stays nil, empty stays empty
func (c Context) Normalize() Context {
	n := c
	n.Schema = cleanIdentifier(c.Schema)
	n.Table = cleanIdentifier(lastSegment(c.Table))
	n.DateCol = cleanIdentifier(c.DateCol)
	n.ItemCol = cleanIdentifier(c.ItemCol)
	n.QtyCol = cleanIdentifier(c.QtyCol)

	if len(c.Dimensions) > 0 {
		n.Dimensions = make([]Dimension, len(c.Dimensions))
		for i, d := range c.Dimensions {
			n.Dimensions[i] = Dimension{Name: d.Name, Values: normalizeValues(d.Values)}
		}
	}
	return n
}

// lastSegment drops a schema qualifier from a dotted table identifier.
func lastSegment(s string) string {
	if i := strings.LastIndex(s, "."); i >= 0 {
		return s[i+1:]
	}
	return s
}

// cleanIdentifier strips bracket and quote delimiters from a SQL identifier.
// Inside a bracket-quoted identifier a literal closing bracket is escaped by
// doubling; that escaping is reversed here.
func cleanIdentifier(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		s = strings.ReplaceAll(s[1:len(s)-1], "]]", "]")
	}
	s = strings.Trim(s, "\"`")
	return s
}

// normalizeValues sorts and deduplicates a dimension value list, preserving
// the nil / empty distinction.
func normalizeValues(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
