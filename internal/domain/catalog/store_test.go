package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCatalog = `{
  "products": [
    {"id": "prod-1", "name": "Lace Bodysuit", "price": 25, "category": "lingerie"},
    {"id": "hat-1", "name": "Denim Bucket Hat", "price": "45.50", "category": "bucket-hats", "inStock": false},
    {"id": "archive-1", "name": "Runway Gown", "price": 900, "category": "timeless"},
    {"id": "new-1", "name": "Silk Robe", "price": 120, "category": "loungewear"}
  ]
}`

func TestDecode(t *testing.T) {
	s, err := Decode(strings.NewReader(testCatalog))
	require.NoError(t, err)
	assert.Equal(t, 4, s.Len())

	p, err := s.Get("prod-1")
	require.NoError(t, err)
	assert.Equal(t, "Lace Bodysuit", p.Name)
	assert.True(t, decimal.NewFromInt(25).Equal(p.Price))
	assert.Equal(t, CollectionLingerie, p.Collection)
	assert.True(t, p.Purchasable)
	assert.True(t, p.InStock, "inStock defaults to true")

	hat, err := s.Get("hat-1")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("45.50").Equal(hat.Price))
	assert.False(t, hat.InStock)
	assert.True(t, hat.Purchasable)

	archived, err := s.Get("archive-1")
	require.NoError(t, err)
	assert.Equal(t, CollectionTimeless, archived.Collection)
	assert.False(t, archived.Purchasable)

	unmapped, err := s.Get("new-1")
	require.NoError(t, err)
	assert.Empty(t, unmapped.Collection)
	assert.False(t, unmapped.Purchasable)
}

func TestGet_NotFound(t *testing.T) {
	s, err := Decode(strings.NewReader(testCatalog))
	require.NoError(t, err)

	_, err = s.Get("missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{name: "not json", doc: `{products`, wantErr: "decode catalog"},
		{name: "no products", doc: `{}`, wantErr: "no products array"},
		{name: "missing price", doc: `{"products":[{"id":"a","name":"A","category":"swim"}]}`, wantErr: "price is required"},
		{name: "negative price", doc: `{"products":[{"id":"a","price":-1,"category":"swim"}]}`, wantErr: "negative price"},
		{name: "empty id", doc: `{"products":[{"id":"","price":1,"category":"swim"}]}`, wantErr: "empty id"},
		{
			name:    "duplicate id",
			doc:     `{"products":[{"id":"a","price":1,"category":"swim"},{"id":"a","price":2,"category":"swim"}]}`,
			wantErr: "duplicate id",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.json")
	require.NoError(t, os.WriteFile(path, []byte(testCatalog), 0o600))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, s.Len())

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestIsPurchasable(t *testing.T) {
	tests := []struct {
		category string
		want     bool
	}{
		{"lingerie", true},
		{"accessories", true},
		{"swim", true},
		{"bucket-hats", true},
		{"timeless", false},
		// Unmapped categories are closed even when they spell a collection name.
		{"Lingerie", false},
		{"Timeless", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.category, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPurchasable(tt.category))
		})
	}
}

func TestCollections(t *testing.T) {
	cols := Collections()
	require.Len(t, cols, 5)

	byName := make(map[string]bool, len(cols))
	for _, c := range cols {
		byName[c.Name] = c.Purchasable
	}
	assert.False(t, byName[CollectionTimeless])
	assert.True(t, byName[CollectionSwim])
}

func TestList_ReturnsCopy(t *testing.T) {
	s, err := Decode(strings.NewReader(testCatalog))
	require.NoError(t, err)

	list := s.List()
	list[0].Name = "mutated"

	p, err := s.Get("prod-1")
	require.NoError(t, err)
	assert.Equal(t, "Lace Bodysuit", p.Name)
}
