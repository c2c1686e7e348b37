package catalog

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Collection names as shown to shoppers.
const (
	CollectionLingerie    = "Lingerie"
	CollectionAccessories = "Accessories"
	CollectionSwim        = "Swim 2023"
	CollectionBucketHats  = "Bucket Hats"
	// CollectionTimeless is the archive. It is never purchasable.
	CollectionTimeless = "Timeless"
)

// categoryCollections maps product categories to the collection they belong to.
var categoryCollections = map[string]string{
	"lingerie":    CollectionLingerie,
	"accessories": CollectionAccessories,
	"swim":        CollectionSwim,
	"timeless":    CollectionTimeless,
	"bucket-hats": CollectionBucketHats,
}

// purchasableCollections is the allow-list of collections open for checkout.
var purchasableCollections = map[string]bool{
	CollectionLingerie:    true,
	CollectionAccessories: true,
	CollectionSwim:        true,
	CollectionBucketHats:  true,
}

// Collection is a named grouping of categories sharing a purchasability flag.
type Collection struct {
	Name        string
	Purchasable bool
}

// Product is a catalog item. Products are immutable once loaded.
type Product struct {
	ID          string
	Name        string
	Price       decimal.Decimal
	Category    string
	Collection  string
	Purchasable bool
	InStock     bool
	Description string
	Image       string
}

// CollectionFor resolves the collection of a category. Unmapped categories
// report ok=false and have no collection.
func CollectionFor(category string) (name string, ok bool) {
	name, ok = categoryCollections[category]
	return name, ok
}

// IsPurchasable reports whether products of the given category may be sold.
// A category must be mapped to an allow-listed collection; unmapped
// categories are not purchasable.
func IsPurchasable(category string) bool {
	name, ok := categoryCollections[category]
	if !ok || name == CollectionTimeless {
		return false
	}
	return purchasableCollections[name]
}

// Collections returns the fixed collection table.
func Collections() []Collection {
	seen := make(map[string]bool, len(categoryCollections))
	out := make([]Collection, 0, len(categoryCollections))
	for _, category := range []string{"lingerie", "accessories", "swim", "bucket-hats", "timeless"} {
		name := categoryCollections[category]
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, Collection{
			Name:        name,
			Purchasable: name != CollectionTimeless && purchasableCollections[name],
		})
	}
	return out
}
