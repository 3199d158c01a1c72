package entity

import "github.com/shopspring/decimal"

// LineRequest is an order line as submitted, referencing the catalog by name.
type LineRequest struct {
	Name     string
	Quantity int
	Price    decimal.Decimal
}

// CatalogIndex maps exact menu item names to their identifiers.
type CatalogIndex map[string]int64

// NewCatalogIndex indexes the given items by name.
func NewCatalogIndex(items []MenuItem) CatalogIndex {
	idx := make(CatalogIndex, len(items))
	for _, item := range items {
		idx[item.Name] = item.ID
	}
	return idx
}

// LineNames returns the distinct names referenced by lines, in first-seen order.
func LineNames(lines []LineRequest) []string {
	seen := make(map[string]struct{}, len(lines))
	names := make([]string, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.Name]; ok {
			continue
		}
		seen[line.Name] = struct{}{}
		names = append(names, line.Name)
	}
	return names
}

// Resolve turns requests into order lines for orderID. Lines whose name is
// not in the index are returned separately, preserving submission order.
func (c CatalogIndex) Resolve(orderID string, lines []LineRequest) (resolved []*OrderLine, unresolved []LineRequest) {
	for _, line := range lines {
		menuID, ok := c[line.Name]
		if !ok {
			unresolved = append(unresolved, line)
			continue
		}
		resolved = append(resolved, &OrderLine{
			OrderID:  orderID,
			MenuID:   menuID,
			Quantity: line.Quantity,
			Price:    line.Price,
		})
	}
	return resolved, unresolved
}
