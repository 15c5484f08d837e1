package scraper

import "strings"

// SelectorSet holds the three selectors needed to locate products on a
// category listing page.
type SelectorSet struct {
	ProductCard  string
	ProductName  string
	ProductPrice string
}

// CartSelectors lists the selector patterns for every cart-flow step, in
// priority order. The site's DOM is unstable across categories, so each step
// tries every pattern before giving up.
type CartSelectors struct {
	AddToOrder    []string
	ProductModal  []string
	SizeOption    []string
	CrustOption   []string
	AddToCart     []string
	CartOpeners   []string
	CartItem      []string
	CartItemName  []string
	CartItemPrice []string
	RemoveItem    []string
	ClearCart     []string
	CloseModal    []string
}

// LocationSelectors targets the city picker modal.
type LocationSelectors struct {
	Trigger    string
	CityInput  string
	Suggestion string
	SaveButton string
	Panel      string
}

// SelectorConfig is the full selector configuration for one site. Built once
// at startup and never mutated afterwards; every component that needs
// selectors receives this by value at construction time.
type SelectorConfig struct {
	Categories   []string
	CategoryURLs map[string]string

	Default     SelectorSet
	PerCategory map[string]SelectorSet

	// Size/price rows for products sold in multiple sizes.
	PriceListItem  string
	PriceSizeLabel string
	PriceValue     string

	// Label format used by dips/extras: "Product Name / $1.25".
	PriceLabel string

	NameFallbacks []string

	// GroupToggles are headers of collapsed product groups that must be
	// clicked open before the group's prices appear in the markup.
	GroupToggles []string

	Location LocationSelectors
	Cart     CartSelectors
}

// DefaultSelectors returns the selector configuration for the target site.
func DefaultSelectors() SelectorConfig {
	return SelectorConfig{
		Categories: []string{
			"pizzas-meat",
			"pizzas-veggie",
			"pizzas-plant-based",
			"salads",
			"sides",
			"dips",
			"dessert",
			"beverages",
		},
		CategoryURLs: map[string]string{
			"pizzas-meat":        "/menu/pizzas/meat",
			"pizzas-veggie":      "/menu/pizzas/veggie",
			"pizzas-plant-based": "/menu/pizzas/plant_based",
			"salads":             "/menu/salads",
			"sides":              "/menu/sides",
			"dips":               "/menu/dips",
			"dessert":            "/menu/dessert",
			"beverages":          "/menu/beverages",
		},
		Default: SelectorSet{
			ProductCard:  "ul.products > li, .product-group",
			ProductName:  ".product-title h4, h4.product-title, .product-header h4, .product-group-title",
			ProductPrice: ".product-header .price, .prices li span, .price",
		},
		PerCategory: map[string]SelectorSet{
			"beverages": {
				ProductCard:  ".beverage-item, .drink-option, .product-group, ul.products > li, .menu-item",
				ProductName:  ".beverage-name, .drink-name, .product-title h4, h4.product-title, .product-group-title, .menu-item-name",
				ProductPrice: ".beverage-price, .drink-price, .product-header .price, .prices li span, .price, .menu-item-price",
			},
			"dips": {
				ProductCard:  ".qty-picker, .product-group, ul.products > li",
				ProductName:  ".qty-picker label, .product-title h4, .product-group-title",
				ProductPrice: ".qty-picker label span, .price",
			},
		},
		PriceListItem:  ".prices li",
		PriceSizeLabel: "label",
		PriceValue:     "span",
		PriceLabel:     ".qty-picker label span",
		NameFallbacks: []string{
			".product-title h4",
			"h4.product-title",
			".product-name",
			".product-header h4",
			".product-group-title",
			"h4",
			"h3",
		},
		GroupToggles: []string{
			".product-group.collapsed .product-group-title",
			".accordion-toggle",
		},
		Location: LocationSelectors{
			Trigger:    ".react-state-link-choose-location",
			CityInput:  ".react-autosuggest__input",
			Suggestion: ".react-autosuggest__suggestion",
			SaveButton: ".location-choice-panel .primary.button",
			Panel:      ".location-choice-panel",
		},
		Cart: CartSelectors{
			AddToOrder:    []string{".prices-actions a", "a.button", ".product-actions a"},
			ProductModal:  []string{".product-modal", ".modal", ".product-detail", ".customization"},
			SizeOption:    []string{"input[type='radio'][name*='size']", "input[type='radio'][name*='Size']", ".size-options label"},
			CrustOption:   []string{"input[type='radio'][name*='crust']", "input[type='radio'][name*='Crust']", "input[type='radio'][name*='dough']"},
			AddToCart:     []string{".add-to-cart", "button[type='submit']", "input[type='submit']"},
			CartOpeners:   []string{".cart-icon", "header a[href*='cart']", ".shopping-cart-icon", "a[href='/cart']", ".cart-btn", ".cart-button"},
			CartItem:      []string{".cart-item", ".line-item", ".cart-product"},
			CartItemName:  []string{".cart-item-name", ".item-title", ".product-name", ".line-item-title"},
			CartItemPrice: []string{".cart-item-price", ".item-price", ".line-item-price", ".product-price"},
			RemoveItem:    []string{".remove-item", ".delete-item", "button[aria-label*='remove']"},
			ClearCart:     []string{".clear-cart", ".empty-cart"},
			CloseModal:    []string{".modal-close", "button[aria-label='Close']", ".close"},
		},
	}
}

// ForCategory returns the selector set for a category, falling back to the
// default set when the category has no dedicated layout.
func (c SelectorConfig) ForCategory(category string) SelectorSet {
	if set, ok := c.PerCategory[category]; ok {
		return set
	}
	return c.Default
}

// CategoryURL returns the URL path for a category.
func (c SelectorConfig) CategoryURL(category string) string {
	if path, ok := c.CategoryURLs[category]; ok {
		return path
	}
	return "/menu/" + category
}

// NormalizeCategory collapses pizza subcategories into a single label for
// output and comparison.
func NormalizeCategory(category string) string {
	if strings.HasPrefix(category, "pizzas-") {
		return "pizzas"
	}
	return category
}
