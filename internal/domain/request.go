package domain

// CartLine references an item in the user's existing cart to be checked out.
type CartLine struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

// DirectPurchase is a single-item purchase made without going through the cart.
type DirectPurchase struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

// CheckoutRequest describes what the user is committing to pay for: either a
// subset of the existing cart or a direct single-item purchase, plus the
// shipping address to use. Immutable once submitted.
type CheckoutRequest struct {
	AddressID string          `json:"address_id"`
	CartItems []CartLine      `json:"cart_items,omitempty"`
	Direct    *DirectPurchase `json:"direct,omitempty"`
}

// HasItems reports whether the request selects anything to purchase.
func (r *CheckoutRequest) HasItems() bool {
	return len(r.CartItems) > 0 || r.Direct != nil
}
