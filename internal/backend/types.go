package backend

import (
	"time"

	"github.com/shopspring/decimal"
)

// User as the backend reports it.
type User struct {
	ID       string    `json:"id"`
	Email    string    `json:"email"`
	Name     string    `json:"name"`
	Role     string    `json:"role"`
	IsActive bool      `json:"is_active"`
	JoinedAt time.Time `json:"created_at"`
}

// Medicine is one catalog entry. Price and Stock are point-in-time
// snapshots as of the response.
type Medicine struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	GenericName string          `json:"generic_name,omitempty"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	ImageURL    string          `json:"image_url,omitempty"`
	SellerID    string          `json:"seller_id"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Review of a medicine. Pending marks a provisional, client-synthesized
// review that the server has not confirmed yet; the backend never sets it.
type Review struct {
	ID         string    `json:"id"`
	MedicineID string    `json:"medicine_id"`
	UserID     string    `json:"user_id"`
	UserName   string    `json:"user_name,omitempty"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	Pending    bool      `json:"-"`
}

// MedicineDetail is the detail read: the medicine plus its reviews and
// aggregate rating. This is the subject of the optimistic review flow.
type MedicineDetail struct {
	Medicine      Medicine `json:"medicine"`
	Reviews       []Review `json:"reviews"`
	AverageRating float64  `json:"average_rating"`
	ReviewCount   int      `json:"review_count"`
}

// CartLine is the wire form of one cart line.
type CartLine struct {
	ID         string          `json:"id"`
	MedicineID string          `json:"medicine_id"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	StockLimit int             `json:"stock_limit"`
}

// Cart is the backend's authoritative cart state.
type Cart struct {
	Lines     []CartLine      `json:"lines"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
}

// OrderItem records a medicine at its price at purchase time. The
// price here never tracks later catalog changes.
type OrderItem struct {
	MedicineID   string          `json:"medicine_id"`
	MedicineName string          `json:"medicine_name,omitempty"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
}

// Order is an immutable-once-placed aggregate. Status transitions are
// server-authoritative; the client only requests them.
type Order struct {
	ID              string          `json:"id"`
	Number          string          `json:"number"`
	Status          string          `json:"status"`
	Items           []OrderItem     `json:"items"`
	Total           decimal.Decimal `json:"total"`
	ShippingAddress string          `json:"shipping_address"`
	Phone           string          `json:"phone"`
	PaymentMethod   string          `json:"payment_method"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
