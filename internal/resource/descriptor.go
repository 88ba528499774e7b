// Package resource drives one paginated admin collection: it turns the user's
// search, page and sort into upstream queries and keeps a loading-aware view
// of the most recent page.
package resource

import (
	"encoding/json"
	"sort"

	"store_admin/internal/models"
)

// Descriptor is the static description of one admin collection.
type Descriptor struct {
	Name string
	// ServerSort means the upstream API accepts sort and direction parameters.
	// Otherwise the loaded page is sorted locally.
	ServerSort       bool
	DefaultSortKey   string
	DefaultDirection models.SortDirection
	Decode           func(raw json.RawMessage) (models.Entity, error)
}

func decoderFor[T models.Entity]() func(json.RawMessage) (models.Entity, error) {
	return func(raw json.RawMessage) (models.Entity, error) {
		return models.DecodeEntity[T](raw)
	}
}

var registry = map[string]Descriptor{
	models.Products:    {Name: models.Products, DefaultSortKey: "name", DefaultDirection: models.Asc, Decode: decoderFor[models.Product]()},
	models.Categories:  {Name: models.Categories, DefaultSortKey: "name", DefaultDirection: models.Asc, Decode: decoderFor[models.Category]()},
	models.Brands:      {Name: models.Brands, DefaultSortKey: "name", DefaultDirection: models.Asc, Decode: decoderFor[models.Brand]()},
	models.Coupons:     {Name: models.Coupons, DefaultSortKey: "code", DefaultDirection: models.Asc, Decode: decoderFor[models.Coupon]()},
	models.Orders:      {Name: models.Orders, ServerSort: true, DefaultSortKey: "created_at", DefaultDirection: models.Desc, Decode: decoderFor[models.Order]()},
	models.Roles:       {Name: models.Roles, DefaultSortKey: "name", DefaultDirection: models.Asc, Decode: decoderFor[models.Role]()},
	models.Permissions: {Name: models.Permissions, DefaultSortKey: "name", DefaultDirection: models.Asc, Decode: decoderFor[models.Permission]()},
	models.Users:       {Name: models.Users, ServerSort: true, DefaultSortKey: "name", DefaultDirection: models.Asc, Decode: decoderFor[models.User]()},
}

// Registry returns the descriptors of every admin collection, keyed by name.
func Registry() map[string]Descriptor {
	out := make(map[string]Descriptor, len(registry))
	for k, v := range registry {
		out[k] = v
	}
	return out
}

// Lookup returns the descriptor of one collection.
func Lookup(name string) (Descriptor, bool) {
	d, ok := registry[name]
	return d, ok
}

// Names lists every collection in a stable order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for k := range registry {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
