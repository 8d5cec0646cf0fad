// Package cart implements the checkout cart: an ordered collection of line
// items priced with exact decimal arithmetic.
package cart

import (
	"github.com/shopspring/decimal"
)

// DefaultTaxRate is the tax applied at checkout (5%).
var DefaultTaxRate = decimal.RequireFromString("0.05")

// Item is a single cart line. Quantity is always positive while the item is
// held by a Cart.
type Item struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Quantity   int             `json:"quantity"`
	VendorID   string          `json:"vendorId"`
	VendorName string          `json:"vendorName"`
	IsVeg      *bool           `json:"isVeg,omitempty"`
}

// LineTotal returns price * quantity.
func (i Item) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart holds line items in insertion order. Items are expected to belong to
// a single vendor, but the cart does not enforce it.
//
// A Cart is not safe for concurrent use.
type Cart struct {
	items   []Item
	taxRate decimal.Decimal
}

// New returns an empty cart using DefaultTaxRate.
func New() *Cart {
	return &Cart{taxRate: DefaultTaxRate}
}

// NewWithTaxRate returns an empty cart using the given tax rate.
func NewWithTaxRate(rate decimal.Decimal) *Cart {
	return &Cart{taxRate: rate}
}

// Restore rebuilds a cart from previously captured items. Items with a
// non-positive quantity are dropped.
func Restore(rate decimal.Decimal, items []Item) *Cart {
	c := NewWithTaxRate(rate)
	for _, it := range items {
		if it.Quantity > 0 {
			c.items = append(c.items, it)
		}
	}
	return c
}

// Add inserts item with quantity 1, or increments the quantity of the entry
// with the same ID. The incoming Quantity field is ignored.
func (c *Cart) Add(item Item) {
	if i := c.index(item.ID); i >= 0 {
		c.items[i].Quantity++
		return
	}
	item.Quantity = 1
	c.items = append(c.items, item)
}

// Remove deletes the entry with the given ID. Unknown IDs are ignored.
func (c *Cart) Remove(id string) {
	i := c.index(id)
	if i < 0 {
		return
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
}

// SetQuantity replaces the quantity of the entry with the given ID. A
// quantity of zero or less removes the entry.
func (c *Cart) SetQuantity(id string, quantity int) {
	if quantity <= 0 {
		c.Remove(id)
		return
	}
	if i := c.index(id); i >= 0 {
		c.items[i].Quantity = quantity
	}
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.items = nil
}

// Items returns a copy of the cart lines in insertion order.
func (c *Cart) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of distinct lines.
func (c *Cart) Len() int {
	return len(c.items)
}

// Vendor returns the vendor of the first line, which checkout uses as the
// order's vendor.
func (c *Cart) Vendor() (id, name string) {
	if len(c.items) == 0 {
		return "", ""
	}
	return c.items[0].VendorID, c.items[0].VendorName
}

// Total returns the subtotal: the sum of price * quantity over all lines.
func (c *Cart) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range c.items {
		sum = sum.Add(it.LineTotal())
	}
	return sum
}

// Tax returns the subtotal multiplied by the tax rate, rounded to whole
// currency units.
func (c *Cart) Tax() decimal.Decimal {
	return c.Total().Mul(c.taxRate).Round(0)
}

// GrandTotal returns subtotal plus tax.
func (c *Cart) GrandTotal() decimal.Decimal {
	return c.Total().Add(c.Tax())
}

func (c *Cart) index(id string) int {
	for i := range c.items {
		if c.items[i].ID == id {
			return i
		}
	}
	return -1
}
