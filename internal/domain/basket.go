package domain

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
	ErrMissingSKU      = errors.New("sku is required")
	ErrNoCurrentBasket = errors.New("current basket not found")
)

func NewBasketID() string {
	return "basket-" + uuid.NewString()
}

// CurrentBasket returns the first CURRENT basket, pointing into c.Baskets.
func (c *Customer) CurrentBasket() *Basket {
	for i := range c.Baskets {
		if c.Baskets[i].Type == BasketTypeCurrent {
			return &c.Baskets[i]
		}
	}
	return nil
}

// AddItem merges quantity units of product into the CURRENT basket, creating
// the basket with newID when the customer has none. An existing line keeps
// the price and snapshot captured when it was first added.
func (c *Customer) AddItem(product Product, quantity int, newID func() string) (*Basket, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	sku := strings.TrimSpace(product.SKU)
	if sku == "" {
		return nil, ErrMissingSKU
	}

	basket := c.CurrentBasket()
	if basket == nil {
		c.Baskets = append(c.Baskets, Basket{
			ID:       newID(),
			Type:     BasketTypeCurrent,
			Products: []LineItem{},
		})
		basket = &c.Baskets[len(c.Baskets)-1]
	}

	if line := basket.line(sku); line != nil {
		line.Quantity = effectiveQuantity(line.Quantity) + quantity
	} else {
		basket.Products = append(basket.Products, LineItem{
			SKU:         sku,
			Quantity:    quantity,
			Price:       product.UnitPrice().InexactFloat64(),
			FullProduct: product.Snapshot(),
		})
	}

	basket.Recalculate()
	return basket, nil
}

// RemoveItem drops every line with sku from the CURRENT basket. Removing a
// SKU that is not in the basket leaves it unchanged.
func (c *Customer) RemoveItem(sku string) (*Basket, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return nil, ErrMissingSKU
	}
	basket := c.CurrentBasket()
	if basket == nil {
		return nil, ErrNoCurrentBasket
	}

	kept := basket.Products[:0]
	for _, item := range basket.Products {
		if item.SKU != sku {
			kept = append(kept, item)
		}
	}
	basket.Products = kept

	basket.Recalculate()
	return basket, nil
}

// Recalculate sets TotalPrice to the sum of price x quantity over all lines.
// There is no discount model, so FinalPrice always equals TotalPrice.
func (b *Basket) Recalculate() {
	if b.Products == nil {
		b.Products = []LineItem{}
	}
	total := decimal.Zero
	for _, item := range b.Products {
		price := decimal.NewFromFloat(item.Price)
		total = total.Add(price.Mul(decimal.NewFromInt(int64(effectiveQuantity(item.Quantity)))))
	}
	b.TotalPrice = total.Round(2).InexactFloat64()
	b.FinalPrice = b.TotalPrice
}

func (b *Basket) line(sku string) *LineItem {
	for i := range b.Products {
		if b.Products[i].SKU == sku {
			return &b.Products[i]
		}
	}
	return nil
}

// effectiveQuantity treats a missing quantity on legacy lines as one unit.
func effectiveQuantity(q int) int {
	if q <= 0 {
		return 1
	}
	return q
}
