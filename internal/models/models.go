package models

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// MaxQuantity is the largest quantity a cart line can hold; cart_lines.quantity is a Postgres INTEGER.
const MaxQuantity = math.MaxInt32

// CartLine binds one user to one product. (UserId, ProductId) is unique.
type CartLine struct {
	Id        string    `json:"id" db:"id"`
	UserId    string    `json:"userId" db:"user_id"`
	ProductId string    `json:"productId" db:"product_id"`
	Quantity  int       `json:"quantity" db:"quantity"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Product is the catalog snapshot the cart prices against. It is never copied into the cart.
type Product struct {
	Id             string         `json:"id" db:"id"`
	Sku            string         `json:"sku" db:"sku"`
	NameEn         string         `json:"nameEn" db:"name_en"`
	NameTh         string         `json:"nameTh" db:"name_th"`
	Price          Money          `json:"price" db:"price"`
	Specifications map[string]any `json:"specifications,omitempty" db:"-"`
	Images         []string       `json:"images" db:"-"`
	CategoryId     *string        `json:"categoryId,omitempty" db:"category_id"`
}

// CartLineDetails is a persisted line joined with the current product row.
type CartLineDetails struct {
	Line    CartLine
	Product Product
}

type CartItemResponse struct {
	Id        string    `json:"id"`
	ProductId string    `json:"productId"`
	Product   Product   `json:"product"`
	Quantity  int       `json:"quantity"`
	UnitPrice Money     `json:"unitPrice"`
	LineTotal Money     `json:"lineTotal"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type CartResponse struct {
	Items         []CartItemResponse `json:"items"`
	Subtotal      Money              `json:"subtotal"`
	Tax           Money              `json:"tax"`
	Total         Money              `json:"total"`
	TaxRate       decimal.Decimal    `json:"taxRate"`
	ItemCount     int                `json:"itemCount"`
	TotalQuantity int                `json:"totalQuantity"`
}

// ImportRow is a syntactically valid bulk import row. Row is the 1-based line number
// the user sees in a spreadsheet, header included.
type ImportRow struct {
	Row       int
	ProductId string
	Quantity  int
}

type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

type BulkImportOutcome struct {
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Errors    []RowError   `json:"errors"`
	Cart      CartResponse `json:"cart"`
}
