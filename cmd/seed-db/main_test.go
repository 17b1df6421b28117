package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/wello-store/internal/domain/product"
)

func TestLoadProducts_Embedded(t *testing.T) {
	products, err := loadProducts("")
	require.NoError(t, err)
	assert.Equal(t, product.DefaultProducts(), products)
}

func TestLoadProducts_File(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.json")
	require.NoError(t, os.WriteFile(good, []byte(`[{"id":"9","name":"Ladle","price":149,"image":"images/ladle.jpg"}]`), 0o600))
	products, err := loadProducts(good)
	require.NoError(t, err)
	assert.Equal(t, []product.Product{{ID: "9", Name: "Ladle", Price: 149, Image: "images/ladle.jpg"}}, products)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`[{"id":"9","name":"Ladle","price":-1}]`), 0o600))
	_, err = loadProducts(bad)
	require.Error(t, err)

	_, err = loadProducts(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
}
