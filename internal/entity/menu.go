package entity

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// MenuItem is read-only catalog data from the order subsystem's view.
type MenuItem struct {
	bun.BaseModel `bun:"table:menu,alias:m"`

	ID         int64           `bun:"menu_id,pk,autoincrement"`
	Name       string          `bun:"name,notnull,unique"`
	Price      decimal.Decimal `bun:"price,type:numeric(10,2),notnull"`
	Category   string          `bun:"category"`
	Note       string          `bun:"note"`
	Enabled    bool            `bun:"enabled,notnull"`
	Image      string          `bun:"image"`
	OrderLimit int             `bun:"order_limit"`
}

// Seller is one row of the popularity aggregation.
type Seller struct {
	MenuID   int64           `bun:"menu_id"`
	Name     string          `bun:"name"`
	Price    decimal.Decimal `bun:"price"`
	Quantity int64           `bun:"total_sold"`
}

// RankSellers orders sellers by quantity descending, then name ascending,
// and keeps at most limit entries. The input slice is not modified.
func RankSellers(sellers []Seller, limit int) []Seller {
	ranked := make([]Seller, len(sellers))
	copy(ranked, sellers)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Quantity != ranked[j].Quantity {
			return ranked[i].Quantity > ranked[j].Quantity
		}
		return ranked[i].Name < ranked[j].Name
	})
	if limit >= 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
