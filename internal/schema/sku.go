package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// Craftable metal defindexes. Smelting converts one unit into three of
// the tier below; combining converts three units into one of the tier
// above. The 3:1 ratio is fixed by the game, not by us.
const (
	DefindexScrap     = 5000
	DefindexReclaimed = 5001
	DefindexRefined   = 5002
)

// QualityUnique is the stock quality used for craft metal.
const QualityUnique = 6

// MetalSKU returns the SKU for a craftable unique item of the given defindex.
func MetalSKU(defindex int) string {
	return fmt.Sprintf("%d;%d", defindex, QualityUnique)
}

// SKU builds the canonical stock-keeping signature for an item.
func SKU(defindex, quality int, craftable bool) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(defindex))
	b.WriteByte(';')
	b.WriteString(strconv.Itoa(quality))
	if !craftable {
		b.WriteString(";uncraftable")
	}
	return b.String()
}

// ParseSKU splits a SKU back into its parts. It accepts the forms
// produced by SKU; anything else is an error.
func ParseSKU(sku string) (defindex, quality int, craftable bool, err error) {
	parts := strings.Split(strings.TrimSpace(sku), ";")
	if len(parts) < 2 {
		return 0, 0, false, fmt.Errorf("schema: malformed sku %q", sku)
	}
	defindex, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false, fmt.Errorf("schema: sku defindex %q: %w", parts[0], err)
	}
	quality, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false, fmt.Errorf("schema: sku quality %q: %w", parts[1], err)
	}
	craftable = true
	for _, p := range parts[2:] {
		if p == "uncraftable" {
			craftable = false
		}
	}
	return defindex, quality, craftable, nil
}

// SmeltResult returns the defindex produced by smelting one unit of the
// given metal tier. ok is false when the tier cannot be smelted.
func SmeltResult(defindex int) (int, bool) {
	switch defindex {
	case DefindexRefined:
		return DefindexReclaimed, true
	case DefindexReclaimed:
		return DefindexScrap, true
	default:
		return 0, false
	}
}

// CombineResult returns the defindex produced by combining three units
// of the given metal tier. ok is false when the tier cannot be combined.
func CombineResult(defindex int) (int, bool) {
	switch defindex {
	case DefindexScrap:
		return DefindexReclaimed, true
	case DefindexReclaimed:
		return DefindexRefined, true
	default:
		return 0, false
	}
}
