package dto

// MenuItemResponse is a catalog entry as served by GET /api/menu.
type MenuItemResponse struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Category   string  `json:"category"`
	Note       string  `json:"note"`
	Enabled    bool    `json:"enabled"`
	Image      string  `json:"image"`
	OrderLimit int     `json:"orderLimit"`
}

// HotItemSummary is an all-time hot item. OrderCount is the quantity sold.
type HotItemSummary struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	OrderCount int64   `json:"orderCount"`
}
