// Package form holds the editable field schemas of every admin collection and
// the drawer that edits one draft against them.
package form

import (
	"encoding/json"
	"strconv"
	"strings"

	"store_admin/internal/models"
)

// Kind is the input type of a field.
type Kind string

const (
	KindText   Kind = "text"
	KindNumber Kind = "number"
	KindBool   Kind = "bool"
	KindList   Kind = "list"
	KindImage  Kind = "image"
)

// Values are draft values keyed by local field name.
type Values map[string]any

// Field maps one local draft field onto its server-side name.
type Field struct {
	Name     string `json:"name"`
	Source   string `json:"source"`
	Kind     Kind   `json:"kind"`
	Required bool   `json:"required"`
	Default  any    `json:"default,omitempty"`
	Editable bool   `json:"editable"`
}

// Schema describes the draft of one collection. Validate returns messages
// keyed by local field name; an empty result means the draft is acceptable.
type Schema struct {
	Resource string                           `json:"resource"`
	Fields   []Field                          `json:"fields"`
	Validate func(v Values) map[string]string `json:"-"`
}

// Field returns the field with the given local name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// LocalName translates a server field name into the draft's name for it.
func (s Schema) LocalName(source string) string {
	for _, f := range s.Fields {
		if f.Source == source {
			return f.Name
		}
	}
	return source
}

func text(name, source string, required bool) Field {
	return Field{Name: name, Source: source, Kind: KindText, Required: required, Default: "", Editable: true}
}

func number(name, source string, required bool) Field {
	return Field{Name: name, Source: source, Kind: KindNumber, Required: required, Editable: true}
}

func flag(name, source string, def bool) Field {
	return Field{Name: name, Source: source, Kind: KindBool, Default: def, Editable: true}
}

func list(name, source string) Field {
	return Field{Name: name, Source: source, Kind: KindList, Default: []any{}, Editable: true}
}

func image(name, source string) Field {
	return Field{Name: name, Source: source, Kind: KindImage, Editable: true}
}

func readOnly(f Field) Field {
	f.Editable = false
	f.Required = false
	return f
}

var schemas = map[string]Schema{
	models.Products: {
		Resource: models.Products,
		Fields: []Field{
			text("name", "name", true),
			text("slug", "slug", false),
			text("sku", "sku", true),
			text("description", "description", false),
			number("price", "price", true),
			number("salePrice", "sale_price", false),
			number("stock", "stock", true),
			number("categoryId", "category_id", true),
			number("brandId", "brand_id", false),
			flag("status", "status", true),
			image("image", "image"),
			list("variants", "variants"),
		},
		Validate: validateProduct,
	},
	models.Categories: {
		Resource: models.Categories,
		Fields: []Field{
			text("name", "name", true),
			text("slug", "slug", false),
			number("parentId", "parent_id", false),
			flag("status", "status", true),
			image("image", "image"),
			readOnly(number("productsCount", "products_count", false)),
		},
	},
	models.Brands: {
		Resource: models.Brands,
		Fields: []Field{
			text("name", "name", true),
			text("slug", "slug", false),
			flag("status", "status", true),
			image("logo", "logo"),
		},
	},
	models.Coupons: {
		Resource: models.Coupons,
		Fields: []Field{
			text("code", "code", true),
			text("type", "type", true),
			number("value", "value", true),
			number("minOrderAmount", "min_order_amount", false),
			number("usageLimit", "usage_limit", false),
			text("startsAt", "starts_at", false),
			text("expiresAt", "expires_at", false),
			flag("status", "status", true),
			list("tiers", "tiers"),
		},
		Validate: validateCoupon,
	},
	models.Orders: {
		Resource: models.Orders,
		Fields: []Field{
			readOnly(text("orderNumber", "order_number", false)),
			readOnly(text("customerName", "customer_name", false)),
			text("status", "status", true),
			text("paymentStatus", "payment_status", false),
			readOnly(number("total", "total", false)),
			readOnly(list("items", "items")),
		},
		Validate: validateOrder,
	},
	models.Roles: {
		Resource: models.Roles,
		Fields: []Field{
			text("name", "name", true),
			list("permissions", "permissions"),
		},
	},
	models.Permissions: {
		Resource: models.Permissions,
		Fields: []Field{
			text("name", "name", true),
			text("guardName", "guard_name", false),
		},
	},
	models.Users: {
		Resource: models.Users,
		Fields: []Field{
			text("name", "name", true),
			text("email", "email", true),
			text("phone", "phone", false),
			flag("status", "status", true),
			list("roles", "roles"),
			readOnly(text("createdAt", "created_at", false)),
		},
		Validate: validateUser,
	},
}

// Schemas returns the draft schema of every collection, keyed by name.
func Schemas() map[string]Schema {
	out := make(map[string]Schema, len(schemas))
	for k, v := range schemas {
		out[k] = v
	}
	return out
}

// Lookup returns the schema of one collection.
func Lookup(resource string) (Schema, bool) {
	s, ok := schemas[resource]
	return s, ok
}

var orderStatuses = map[string]bool{
	"pending": true, "processing": true, "shipped": true, "delivered": true, "cancelled": true,
}

func validateProduct(v Values) map[string]string {
	errs := map[string]string{}
	price, okPrice := numberOf(v["price"])
	if okPrice && price < 0 {
		errs["price"] = "Price cannot be negative."
	}
	if sale, ok := numberOf(v["salePrice"]); ok && okPrice && sale >= price {
		errs["salePrice"] = "Sale price must be lower than the price."
	}
	if stock, ok := numberOf(v["stock"]); ok && stock < 0 {
		errs["stock"] = "Stock cannot be negative."
	}
	return errs
}

func validateCoupon(v Values) map[string]string {
	errs := map[string]string{}
	kind, _ := v["type"].(string)
	value, ok := numberOf(v["value"])
	switch {
	case kind != "percent" && kind != "fixed":
		errs["type"] = "Type must be percent or fixed."
	case ok && value <= 0:
		errs["value"] = "Value must be greater than zero."
	case ok && kind == "percent" && value > 100:
		errs["value"] = "A percentage cannot exceed 100."
	}

	tiers, _ := v["tiers"].([]any)
	last := -1.0
	for _, t := range tiers {
		tier, _ := t.(map[string]any)
		floor, ok := numberOf(tier["min_amount"])
		if !ok || floor <= last {
			errs["tiers"] = "Tier minimum amounts must be increasing."
			break
		}
		last = floor
	}
	return errs
}

func validateOrder(v Values) map[string]string {
	status, _ := v["status"].(string)
	if status != "" && !orderStatuses[status] {
		return map[string]string{"status": "Unknown order status."}
	}
	return nil
}

func validateUser(v Values) map[string]string {
	email, _ := v["email"].(string)
	if email != "" && !strings.Contains(email, "@") {
		return map[string]string{"email": "Enter a valid email address."}
	}
	return nil
}

func numberOf(v any) (float64, bool) {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	}
	return false
}
