package domain

import "fmt"

// BundleItem is one (product, quantity) line of a Bundle.
type BundleItem struct {
	Product  Product
	Quantity int
}

// Bundle is a stable catalog entry: an ordered list of products with
// quantities, synergy bounds, per-issue weights, and free-form metadata.
// A Bundle is immutable once constructed; two bundles are equal iff their
// IDs are equal, regardless of the rest of their structure.
type Bundle struct {
	ID         string
	Items      []BundleItem
	SynergyMin float64
	SynergyMax float64
	Weights    map[IssueName]float64
	Metadata   map[string]string
}

// NewBundle validates and constructs a Bundle. Quantities must be positive,
// synergy bounds must satisfy 0<=min<=max<=1, and weights must be non-negative.
func NewBundle(id string, items []BundleItem, synergyMin, synergyMax float64, weights map[IssueName]float64, metadata map[string]string) (Bundle, error) {
	if id == "" {
		return Bundle{}, fmt.Errorf("bundle: id is required")
	}
	if len(items) == 0 {
		return Bundle{}, fmt.Errorf("bundle %s: at least one item is required", id)
	}
	seen := map[Product]bool{}
	cp := make([]BundleItem, len(items))
	for i, it := range items {
		if it.Quantity <= 0 {
			return Bundle{}, fmt.Errorf("bundle %s: item %s quantity must be > 0", id, it.Product)
		}
		sym := NormalizeProduct(it.Product)
		if seen[sym] {
			return Bundle{}, fmt.Errorf("bundle %s: duplicate product %s", id, sym)
		}
		seen[sym] = true
		cp[i] = BundleItem{Product: sym, Quantity: it.Quantity}
	}
	if synergyMin < 0 || synergyMin > synergyMax || synergyMax > 1 {
		return Bundle{}, fmt.Errorf("bundle %s: synergy bounds must satisfy 0<=min<=max<=1, got [%.4f,%.4f]", id, synergyMin, synergyMax)
	}
	w := map[IssueName]float64{}
	for name, weight := range weights {
		if weight < 0 {
			return Bundle{}, fmt.Errorf("bundle %s: negative weight for issue %s", id, name)
		}
		w[NormalizeIssueName(name)] = weight
	}
	md := map[string]string{}
	for k, v := range metadata {
		md[k] = v
	}
	return Bundle{ID: id, Items: cp, SynergyMin: synergyMin, SynergyMax: synergyMax, Weights: w, Metadata: md}, nil
}

// Equal reports whether two bundles share the same identifier. Bundle
// identity is never derived from item composition; it is the ID alone.
func (b Bundle) Equal(other Bundle) bool {
	return b.ID == other.ID
}

// QuantityOf returns the bundle's default quantity for a product, or 0 if absent.
func (b Bundle) QuantityOf(p Product) int {
	sym := NormalizeProduct(p)
	for _, it := range b.Items {
		if it.Product == sym {
			return it.Quantity
		}
	}
	return 0
}

// CoverageVector projects quantities (aligned to Items order, typically a
// Bid's negotiated quantities) onto an explicit product order.
func (b Bundle) CoverageVector(order []Product, quantities []int) []int {
	out := make([]int, len(order))
	index := map[Product]int{}
	for i, it := range b.Items {
		index[it.Product] = i
	}
	for i, p := range order {
		if idx, ok := index[NormalizeProduct(p)]; ok && idx < len(quantities) {
			out[i] = quantities[idx]
		}
	}
	return out
}
