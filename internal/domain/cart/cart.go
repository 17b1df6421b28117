// Package cart holds the transient per-session shopping cart.
package cart

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/wello-store/internal/domain/pricing"
	"github.com/xenking/wello-store/internal/domain/product"
)

// MaxQuantity is the largest quantity a single line may hold.
const MaxQuantity = 99

// ErrInvalidQuantity is returned when a line quantity is outside 1..MaxQuantity.
var ErrInvalidQuantity = errors.Errorf("quantity must be between 1 and %d", MaxQuantity)

// CheckQuantity reports whether qty fits a single line.
func CheckQuantity(qty int) error {
	if qty < 1 || qty > MaxQuantity {
		return ErrInvalidQuantity
	}
	return nil
}

// LineNotFoundError indicates a remove by an out-of-range index.
type LineNotFoundError struct {
	Index int
}

func (e *LineNotFoundError) Error() string {
	return fmt.Sprintf("cart line %d not found", e.Index)
}

// Line is a product with a quantity.
type Line struct {
	Product  product.Product
	Quantity int
}

// Cart is an ordered list of lines. The zero value is an empty cart.
// Cart is not safe for concurrent use.
type Cart struct {
	lines []Line
}

// Add appends qty units of p, merging with an existing line for the same
// product. The merged quantity is bounded by MaxQuantity as well.
func (c *Cart) Add(p product.Product, qty int) error {
	if err := CheckQuantity(qty); err != nil {
		return err
	}
	for i := range c.lines {
		if c.lines[i].Product.ID == p.ID {
			if err := CheckQuantity(c.lines[i].Quantity + qty); err != nil {
				return err
			}
			c.lines[i].Quantity += qty
			return nil
		}
	}
	c.lines = append(c.lines, Line{Product: p, Quantity: qty})
	return nil
}

// Remove deletes the line at index.
func (c *Cart) Remove(index int) error {
	if index < 0 || index >= len(c.lines) {
		return &LineNotFoundError{Index: index}
	}
	c.lines = append(c.lines[:index], c.lines[index+1:]...)
	return nil
}

// Lines returns a copy of the cart lines.
func (c *Cart) Lines() []Line {
	return Clone(c.lines)
}

func (c *Cart) Empty() bool { return len(c.lines) == 0 }

func (c *Cart) Clear() { c.lines = nil }

// Clone copies lines.
func Clone(lines []Line) []Line {
	if lines == nil {
		return nil
	}
	out := make([]Line, len(lines))
	copy(out, lines)
	return out
}

// Units returns the total number of units across lines.
func Units(lines []Line) int {
	n := 0
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}

// Expand converts lines to one line per unit.
func Expand(lines []Line) []Line {
	out := make([]Line, 0, Units(lines))
	for _, l := range lines {
		for i := 0; i < l.Quantity; i++ {
			out = append(out, Line{Product: l.Product, Quantity: 1})
		}
	}
	return out
}

// Priced converts lines to pricing input.
func Priced(lines []Line) []pricing.Line {
	out := make([]pricing.Line, len(lines))
	for i, l := range lines {
		out[i] = pricing.Line{
			ProductID: l.Product.ID,
			UnitPrice: l.Product.Price,
			Quantity:  l.Quantity,
		}
	}
	return out
}

// Describe renders the order item description: product names joined
// with ", ", one name per unit.
func Describe(lines []Line) string {
	names := make([]string, 0, Units(lines))
	for _, l := range Expand(lines) {
		names = append(names, l.Product.Name)
	}
	return strings.Join(names, ", ")
}
