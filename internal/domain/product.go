package domain

// Product is the single item sold by the storefront.
type Product struct {
	ID          string
	Name        string
	Description string
	AmountCents int64
	Currency    string
}

var DefaultProduct = Product{
	ID:          "ultimate-mega-bundle",
	Name:        "Ultimate Digital Bundle (Planner + Templates + Guides)",
	Description: "Instant-download digital business & lifestyle bundle.",
	AmountCents: 1999,
	Currency:    "usd",
}
