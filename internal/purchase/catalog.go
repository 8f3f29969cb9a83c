package purchase

// CoinPackage is one fixed catalog entry: a real-money price and the coins
// it buys. The catalog is deliberately hardcoded; prices are not user input.
type CoinPackage struct {
	ID       string `json:"id"`
	Coins    int64  `json:"coins"`
	PriceJPY int64  `json:"price_jpy"`
	Label    string `json:"label"`
	Bonus    string `json:"bonus,omitempty"`
}

var Packages = []CoinPackage{
	{ID: "pack_500", Coins: 500, PriceJPY: 500, Label: "500 coins"},
	{ID: "pack_1200", Coins: 1200, PriceJPY: 1000, Label: "1,200 coins", Bonus: "+200 bonus"},
	{ID: "pack_4200", Coins: 4200, PriceJPY: 3000, Label: "4,200 coins", Bonus: "+1,200 bonus"},
}

// FindPackage looks a package up by id.
func FindPackage(id string) (CoinPackage, bool) {
	for _, p := range Packages {
		if p.ID == id {
			return p, true
		}
	}
	return CoinPackage{}, false
}
