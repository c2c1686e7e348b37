package catalog

import (
	"encoding/json"
	"io"
	"os"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Store is the read-only product catalog. It is safe for concurrent use
// because nothing mutates it after construction.
type Store struct {
	products []Product
	index    map[string]int
}

type productJSON struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Price       decimal.NullDecimal `json:"price"`
	Category    string              `json:"category"`
	InStock     *bool               `json:"inStock"`
	Description string              `json:"description"`
	Image       string              `json:"image"`
}

type catalogJSON struct {
	Products []productJSON `json:"products"`
}

// Load reads the catalog document at path.
func Load(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open catalog")
	}
	defer func() { _ = f.Close() }()

	s, err := Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "load catalog %s", path)
	}
	return s, nil
}

// Decode parses a catalog document of the form {"products": [...]}.
func Decode(r io.Reader) (*Store, error) {
	var doc catalogJSON
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "decode catalog")
	}
	if doc.Products == nil {
		return nil, errors.New("catalog has no products array")
	}

	products := make([]Product, 0, len(doc.Products))
	for i, p := range doc.Products {
		if !p.Price.Valid {
			return nil, errors.Errorf("product #%d (%q): price is required", i, p.ID)
		}
		inStock := true
		if p.InStock != nil {
			inStock = *p.InStock
		}
		products = append(products, Product{
			ID:          p.ID,
			Name:        p.Name,
			Price:       p.Price.Decimal,
			Category:    p.Category,
			InStock:     inStock,
			Description: p.Description,
			Image:       p.Image,
		})
	}
	return NewStore(products)
}

// NewStore validates products and resolves their collections.
func NewStore(products []Product) (*Store, error) {
	s := &Store{
		products: make([]Product, len(products)),
		index:    make(map[string]int, len(products)),
	}
	for i, p := range products {
		if p.ID == "" {
			return nil, errors.Errorf("product #%d: empty id", i)
		}
		if _, dup := s.index[p.ID]; dup {
			return nil, errors.Errorf("product %q: duplicate id", p.ID)
		}
		if p.Price.IsNegative() {
			return nil, errors.Errorf("product %q: negative price %s", p.ID, p.Price)
		}
		p.Collection, _ = CollectionFor(p.Category)
		p.Purchasable = IsPurchasable(p.Category)
		s.products[i] = p
		s.index[p.ID] = i
	}
	return s, nil
}

// Get returns a copy of the product with the given id.
func (s *Store) Get(id string) (Product, error) {
	i, ok := s.index[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return s.products[i], nil
}

// IsPurchasable reports whether the category may be sold.
func (s *Store) IsPurchasable(category string) bool {
	return IsPurchasable(category)
}

// List returns all products in catalog order.
func (s *Store) List() []Product {
	out := make([]Product, len(s.products))
	copy(out, s.products)
	return out
}

// Len returns the number of products.
func (s *Store) Len() int {
	return len(s.products)
}
