package product

import "context"

var _ Repository = (*StaticCatalog)(nil)

// DefaultProducts is the built-in storefront catalog.
func DefaultProducts() []Product {
	return []Product{
		{
			ID:          "1",
			Name:        "Electric Vegetable Cutter",
			Price:       999,
			Description: "Chop, slice and dice vegetables in seconds.",
			Image:       "images/vegetable-cutter.jpg",
		},
		{
			ID:          "2",
			Name:        "Silicone Oil Brush",
			Price:       499,
			Description: "Heat resistant brush for oiling pans and basting.",
			Image:       "images/oil-brush.jpg",
		},
		{
			ID:          "3",
			Name:        "Portable Blender",
			Price:       1299,
			Description: "Rechargeable blender for shakes and smoothies on the go.",
			Image:       "images/portable-blender.jpg",
		},
		{
			ID:          "4",
			Name:        "Digital Kitchen Scale",
			Price:       799,
			Description: "Precise measurements up to 5 kg.",
			Image:       "images/kitchen-scale.jpg",
		},
	}
}

// StaticCatalog is an in-memory Repository over a fixed product list.
type StaticCatalog struct {
	products []Product
	byID     map[string]int
}

// NewStaticCatalog returns a catalog over the given products, or over
// DefaultProducts when none are given.
func NewStaticCatalog(products ...Product) *StaticCatalog {
	if len(products) == 0 {
		products = DefaultProducts()
	}
	c := &StaticCatalog{
		products: products,
		byID:     make(map[string]int, len(products)),
	}
	for i, p := range products {
		c.byID[p.ID] = i
	}
	return c
}

func (c *StaticCatalog) List(context.Context) ([]Product, error) {
	out := make([]Product, len(c.products))
	copy(out, c.products)
	return out, nil
}

func (c *StaticCatalog) GetByID(_ context.Context, id string) (*Product, error) {
	i, ok := c.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	p := c.products[i]
	return &p, nil
}

// GetByIDs returns the products matching ids; unknown ids are skipped.
func (c *StaticCatalog) GetByIDs(_ context.Context, ids []string) ([]Product, error) {
	out := make([]Product, 0, len(ids))
	for _, id := range ids {
		if i, ok := c.byID[id]; ok {
			out = append(out, c.products[i])
		}
	}
	return out, nil
}
