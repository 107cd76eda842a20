package readmodel

import "time"

// Order types
const (
	OrderTypeSell = "SELL"
	OrderTypeBuy  = "BUY"
)

// Order statuses as issued by the backend
const (
	OrderStatusPending   = "PENDING"
	OrderStatusConfirmed = "CONFIRMED"
	OrderStatusCanceled  = "CANCELED"
)

// Product is the record served by /products
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	SKU         string    `json:"sku,omitempty"`
	Price       float64   `json:"price"`
	Stock       int       `json:"stock"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	CategoryID  string    `json:"categoryId,omitempty"`
	Category    *Category `json:"category,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (p Product) GetID() string { return p.ID }

// Category is the record served by /categories
type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug,omitempty"`
	Description string    `json:"description"`
	ParentID    string    `json:"parentId,omitempty"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (c Category) GetID() string { return c.ID }

// OrderItem is one line of a sales order. StockedQuantity is the stock the
// backend reported for the product when the order was listed.
type OrderItem struct {
	ID              string   `json:"id,omitempty"`
	ProductID       string   `json:"productId"`
	Product         *Product `json:"product,omitempty"`
	NeedQuantity    int      `json:"needQuantity"`
	StockedQuantity int      `json:"stockedQuantity"`
	Price           float64  `json:"price"`
}

// Order is the record served by /orders (the sales "workflow")
type Order struct {
	ID        string      `json:"id"`
	OrderType string      `json:"orderType"`
	Status    string      `json:"status"`
	Customer  string      `json:"customer,omitempty"`
	Items     []OrderItem `json:"items"`
	Total     float64     `json:"total"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

func (o Order) GetID() string { return o.ID }

// OrderStatusResponse is returned by the confirm and cancel endpoints
type OrderStatusResponse struct {
	ID     string `json:"id,omitempty"`
	Status string `json:"status"`
}

// User is the record served by /users
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName,omitempty"`
	Roles     []string  `json:"roles,omitempty"`
	IsActive  bool      `json:"isActive"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (u User) GetID() string { return u.ID }

// HasRole reports whether the user carries the ROLE_<name> authority.
func (u User) HasRole(name string) bool {
	for _, r := range u.Roles {
		if r == name || r == "ROLE_"+name {
			return true
		}
	}
	return false
}

// InventoryItem is the record served by /inventory. The product is embedded,
// so its fields are addressed with dotted paths such as "product.name".
type InventoryItem struct {
	ID        string    `json:"id"`
	Product   Product   `json:"product"`
	Quantity  int       `json:"quantity"`
	Location  string    `json:"location,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (i InventoryItem) GetID() string { return i.ID }

// InventoryOrder is a stock replenishment order served by /inventory/orders
type InventoryOrder struct {
	ID        string    `json:"id"`
	Product   Product   `json:"product"`
	Quantity  int       `json:"quantity"`
	Supplier  string    `json:"supplier,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

func (o InventoryOrder) GetID() string { return o.ID }

// CartItem is a line of the locally persisted cart
type CartItem struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

func (c CartItem) GetID() string { return c.ProductID }

// TokenPair is returned by login and renew
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Credentials is the login request body
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SignupRequest is the signup request body
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName,omitempty"`
}

// PasswordChange is the /me/change-password request body
type PasswordChange struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// SalesReportRow is one product line of the sales report
type SalesReportRow struct {
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	Quantity    int     `json:"quantity"`
	Revenue     float64 `json:"revenue"`
}

// SalesReport is served by /reports/sales
type SalesReport struct {
	From         string           `json:"from,omitempty"`
	To           string           `json:"to,omitempty"`
	TotalOrders  int              `json:"totalOrders"`
	TotalRevenue float64          `json:"totalRevenue"`
	Rows         []SalesReportRow `json:"rows"`
}

// InventoryReportRow is one product line of the inventory report
type InventoryReportRow struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	Quantity    int    `json:"quantity"`
	LowStock    bool   `json:"lowStock"`
}

// InventoryReport is served by /reports/inventory
type InventoryReport struct {
	GeneratedAt time.Time            `json:"generatedAt"`
	TotalItems  int                  `json:"totalItems"`
	Rows        []InventoryReportRow `json:"rows"`
}
