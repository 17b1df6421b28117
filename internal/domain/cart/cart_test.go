package cart

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/wello-store/internal/domain/pricing"
	"github.com/xenking/wello-store/internal/domain/product"
)

var (
	cutter  = product.Product{ID: "1", Name: "Electric Vegetable Cutter", Price: 999}
	brush   = product.Product{ID: "2", Name: "Silicone Oil Brush", Price: 499}
	blender = product.Product{ID: "3", Name: "Portable Blender", Price: 1299}
)

func TestCart_Add(t *testing.T) {
	var c Cart
	require.NoError(t, c.Add(cutter, 1))
	require.NoError(t, c.Add(brush, 2))
	require.NoError(t, c.Add(cutter, 2))

	lines := c.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, 3, lines[0].Quantity)
	assert.Equal(t, 2, lines[1].Quantity)
	assert.Equal(t, 5, Units(lines))

	require.ErrorIs(t, c.Add(blender, 0), ErrInvalidQuantity)
	require.ErrorIs(t, c.Add(blender, -1), ErrInvalidQuantity)
}

func TestCart_Add_MaxQuantity(t *testing.T) {
	tests := []struct {
		name  string
		adds  []int
		err   bool
		total int
	}{
		{name: "at limit", adds: []int{MaxQuantity}, total: MaxQuantity},
		{name: "over limit", adds: []int{MaxQuantity + 1}, err: true},
		{name: "huge", adds: []int{math.MaxInt / 2}, err: true},
		{name: "merge to limit", adds: []int{90, 9}, total: MaxQuantity},
		{name: "merge over limit", adds: []int{90, 10}, err: true, total: 90},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Cart
			var err error
			for _, q := range tt.adds {
				err = c.Add(cutter, q)
			}
			if tt.err {
				require.ErrorIs(t, err, ErrInvalidQuantity)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.total, Units(c.Lines()))
		})
	}
}

func TestCart_Remove(t *testing.T) {
	var c Cart
	require.NoError(t, c.Add(cutter, 1))
	require.NoError(t, c.Add(brush, 1))
	require.NoError(t, c.Add(blender, 1))

	require.NoError(t, c.Remove(1))
	lines := c.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "1", lines[0].Product.ID)
	assert.Equal(t, "3", lines[1].Product.ID)

	var nf *LineNotFoundError
	require.ErrorAs(t, c.Remove(5), &nf)
	assert.Equal(t, 5, nf.Index)
	require.ErrorAs(t, c.Remove(-1), &nf)

	c.Clear()
	assert.True(t, c.Empty())
}

func TestCart_LinesIsCopy(t *testing.T) {
	var c Cart
	require.NoError(t, c.Add(cutter, 1))

	lines := c.Lines()
	lines[0].Quantity = 42
	assert.Equal(t, 1, c.Lines()[0].Quantity)
}

func TestDescribe(t *testing.T) {
	lines := []Line{{Product: cutter, Quantity: 2}, {Product: brush, Quantity: 1}}
	assert.Equal(t, "Electric Vegetable Cutter, Electric Vegetable Cutter, Silicone Oil Brush", Describe(lines))
	assert.Empty(t, Describe(nil))
}

func TestExpand_PricesIdentically(t *testing.T) {
	lines := []Line{{Product: cutter, Quantity: 2}, {Product: blender, Quantity: 3}}
	expanded := Expand(lines)
	require.Len(t, expanded, 5)
	for _, l := range expanded {
		assert.Equal(t, 1, l.Quantity)
	}
	assert.Equal(t, pricing.Compute(Priced(lines), nil), pricing.Compute(Priced(expanded), nil))
}
