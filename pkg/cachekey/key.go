package cachekey

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// KeyLength is the fixed length of a derived cache key in hex characters.
const KeyLength = 16

// Key derives the cache key for the context: a fixed-length hex string over
// the canonical key material. The hash is collision-resistant for this
// purpose, not cryptographic. Identical canonical contexts always yield
// identical keys; any single differing field yields a different key with
// overwhelming probability.
func (c Context) Key() string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(c.material()))
}

// material renders the canonical, underscore-joined key material. Field order
// is fixed; changing it invalidates every persisted cache entry.
func (c Context) material() string {
	n := c.Normalize()

	parts := []string{
		n.Schema,
		n.Table,
		n.DateCol,
		n.ItemCol,
		n.QtyCol,
		n.ModelType,
		strconv.Itoa(n.HorizonDays),
		n.ItemID,
		"HPT:" + strconv.FormatBool(n.Tuning),
	}

	// Each dimension contributes one token. "none" marks a dimension not in
	// use; an in-use dimension with nothing selected contributes the bare
	// "<NAME>:" prefix, which cannot collide with "none" or any real value.
	for _, d := range n.Dimensions {
		if d.Values == nil {
			parts = append(parts, d.Name+":none")
		} else {
			parts = append(parts, d.Name+":"+strings.Join(d.Values, "|"))
		}
	}

	return strings.Join(parts, "_")
}
