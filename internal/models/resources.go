package models

// Product is a catalog product with its purchasable variants.
type Product struct {
	ID          ID               `json:"id"`
	Name        string           `json:"name"`
	Slug        string           `json:"slug"`
	SKU         string           `json:"sku"`
	Description string           `json:"description"`
	Price       Amount           `json:"price"`
	SalePrice   Amount           `json:"sale_price"`
	Stock       Count            `json:"stock"`
	CategoryID  ID               `json:"category_id"`
	BrandID     ID               `json:"brand_id"`
	Status      Flag             `json:"status"`
	Image       string           `json:"image"`
	Variants    []ProductVariant `json:"variants"`
}

// ProductVariant is one purchasable option of a product (size, color...).
type ProductVariant struct {
	ID    ID     `json:"id,omitempty"`
	Name  string `json:"name"`
	SKU   string `json:"sku"`
	Price Amount `json:"price"`
	Stock Count  `json:"stock"`
}

func (p Product) Resource() string { return Products }
func (p Product) Key() string      { return string(p.ID) }
func (p Product) Label() string    { return p.Name }
func (p Product) Active() bool     { return bool(p.Status) }

func (p Product) SortValue(field string) any {
	switch field {
	case "id":
		return sortID(p.ID)
	case "name":
		return sortText(p.Name)
	case "sku":
		return sortText(p.SKU)
	case "price":
		return sortAmount(p.Price)
	case "stock":
		return int(p.Stock)
	case "status":
		return bool(p.Status)
	}
	return nil
}

type Category struct {
	ID            ID     `json:"id"`
	Name          string `json:"name"`
	Slug          string `json:"slug"`
	ParentID      ID     `json:"parent_id"`
	Status        Flag   `json:"status"`
	Image         string `json:"image"`
	ProductsCount Count  `json:"products_count"`
}

func (c Category) Resource() string { return Categories }
func (c Category) Key() string      { return string(c.ID) }
func (c Category) Label() string    { return c.Name }
func (c Category) Active() bool     { return bool(c.Status) }

func (c Category) SortValue(field string) any {
	switch field {
	case "id":
		return sortID(c.ID)
	case "name":
		return sortText(c.Name)
	case "products_count":
		return int(c.ProductsCount)
	case "status":
		return bool(c.Status)
	}
	return nil
}

type Brand struct {
	ID     ID     `json:"id"`
	Name   string `json:"name"`
	Slug   string `json:"slug"`
	Status Flag   `json:"status"`
	Logo   string `json:"logo"`
}

func (b Brand) Resource() string { return Brands }
func (b Brand) Key() string      { return string(b.ID) }
func (b Brand) Label() string    { return b.Name }
func (b Brand) Active() bool     { return bool(b.Status) }

func (b Brand) SortValue(field string) any {
	switch field {
	case "id":
		return sortID(b.ID)
	case "name":
		return sortText(b.Name)
	case "status":
		return bool(b.Status)
	}
	return nil
}

// Coupon is a discount code. Tiers grant a bigger discount above a minimum order amount.
type Coupon struct {
	ID             ID           `json:"id"`
	Code           string       `json:"code"`
	Type           string       `json:"type"`
	Value          Amount       `json:"value"`
	MinOrderAmount Amount       `json:"min_order_amount"`
	UsageLimit     Count        `json:"usage_limit"`
	StartsAt       string       `json:"starts_at"`
	ExpiresAt      string       `json:"expires_at"`
	Status         Flag         `json:"status"`
	Tiers          []CouponTier `json:"tiers"`
}

type CouponTier struct {
	MinAmount Amount `json:"min_amount"`
	Discount  Amount `json:"discount"`
}

func (c Coupon) Resource() string { return Coupons }
func (c Coupon) Key() string      { return string(c.ID) }
func (c Coupon) Label() string    { return c.Code }
func (c Coupon) Active() bool     { return bool(c.Status) }

func (c Coupon) SortValue(field string) any {
	switch field {
	case "id":
		return sortID(c.ID)
	case "code":
		return sortText(c.Code)
	case "value":
		return sortAmount(c.Value)
	case "expires_at":
		return sortText(c.ExpiresAt)
	case "status":
		return bool(c.Status)
	}
	return nil
}

type Order struct {
	ID            ID          `json:"id"`
	OrderNumber   string      `json:"order_number"`
	CustomerName  string      `json:"customer_name"`
	Status        string      `json:"status"`
	PaymentStatus string      `json:"payment_status"`
	Total         Amount      `json:"total"`
	CreatedAt     string      `json:"created_at"`
	Items         []OrderItem `json:"items"`
}

type OrderItem struct {
	ProductName string `json:"product_name"`
	Quantity    Count  `json:"quantity"`
	Price       Amount `json:"price"`
}

func (o Order) Resource() string { return Orders }
func (o Order) Key() string      { return string(o.ID) }

func (o Order) Label() string {
	if o.OrderNumber != "" {
		return o.OrderNumber
	}
	return "#" + string(o.ID)
}

func (o Order) Active() bool { return o.Status != "cancelled" }

func (o Order) SortValue(field string) any {
	switch field {
	case "id":
		return sortID(o.ID)
	case "order_number":
		return sortText(o.OrderNumber)
	case "customer_name":
		return sortText(o.CustomerName)
	case "status":
		return sortText(o.Status)
	case "total":
		return sortAmount(o.Total)
	case "created_at":
		return sortText(o.CreatedAt)
	}
	return nil
}

type Role struct {
	ID          ID       `json:"id"`
	Name        string   `json:"name"`
	Permissions NameList `json:"permissions"`
}

func (r Role) Resource() string { return Roles }
func (r Role) Key() string      { return string(r.ID) }
func (r Role) Label() string    { return r.Name }
func (r Role) Active() bool     { return true }

func (r Role) SortValue(field string) any {
	switch field {
	case "id":
		return sortID(r.ID)
	case "name":
		return sortText(r.Name)
	case "permissions":
		return len(r.Permissions)
	}
	return nil
}

type Permission struct {
	ID        ID     `json:"id"`
	Name      string `json:"name"`
	GuardName string `json:"guard_name"`
}

func (p Permission) Resource() string { return Permissions }
func (p Permission) Key() string      { return string(p.ID) }
func (p Permission) Label() string    { return p.Name }
func (p Permission) Active() bool     { return true }

func (p Permission) SortValue(field string) any {
	switch field {
	case "id":
		return sortID(p.ID)
	case "name":
		return sortText(p.Name)
	case "guard_name":
		return sortText(p.GuardName)
	}
	return nil
}

type User struct {
	ID        ID       `json:"id"`
	Name      string   `json:"name"`
	Email     string   `json:"email"`
	Phone     string   `json:"phone"`
	Status    Flag     `json:"status"`
	Roles     NameList `json:"roles"`
	CreatedAt string   `json:"created_at"`
}

func (u User) Resource() string { return Users }
func (u User) Key() string      { return string(u.ID) }
func (u User) Label() string    { return u.Name }
func (u User) Active() bool     { return bool(u.Status) }

func (u User) SortValue(field string) any {
	switch field {
	case "id":
		return sortID(u.ID)
	case "name":
		return sortText(u.Name)
	case "email":
		return sortText(u.Email)
	case "status":
		return bool(u.Status)
	case "created_at":
		return sortText(u.CreatedAt)
	}
	return nil
}
