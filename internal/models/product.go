package models

type Product struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	CoinCost int64  `json:"coin_cost"`
	IconURL  string `json:"icon_url"`
	IsActive bool   `json:"is_active"`
}

const googlePlayIcon = "https://upload.wikimedia.org/wikipedia/commons/d/d0/Google_Play_Arrow_logo.svg"

var ShopCatalog = []Product{
	{ID: "p1", Title: "₹10 Google Play Code", CoinCost: 1000, IconURL: googlePlayIcon, IsActive: true},
	{ID: "p2", Title: "₹25 Google Play Code", CoinCost: 2500, IconURL: googlePlayIcon, IsActive: true},
	{ID: "p3", Title: "₹50 Google Play Code", CoinCost: 5000, IconURL: googlePlayIcon, IsActive: true},
	{ID: "p4", Title: "₹100 Google Play Code", CoinCost: 10000, IconURL: googlePlayIcon, IsActive: true},
	{ID: "p5", Title: "Premium Battle Pass", CoinCost: 20000, IconURL: "https://cdn-icons-png.flaticon.com/512/3112/3112946.png", IsActive: true},
}

func FindProduct(id string) (Product, bool) {
	for _, p := range ShopCatalog {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}
