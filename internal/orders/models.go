package orders

import "time"

type ProductTranslation struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	LanguageID  string `json:"languageId"`
}

type Product struct {
	ID           int64
	Name         string
	PublishedAt  *time.Time
	DeletedAt    *time.Time
	Translations []ProductTranslation
}

// Purchasable reports whether the product is live: not soft-deleted and
// published no later than now.
func (p Product) Purchasable(now time.Time) bool {
	return p.DeletedAt == nil && p.PublishedAt != nil && !p.PublishedAt.After(now)
}

type SKU struct {
	ID          int64
	ProductID   int64
	Value       string
	Price       int64
	Stock       int
	Image       string
	CreatedByID int64     // shop owner
	UpdatedAt   time.Time // optimistic version token
}

type CartItem struct {
	ID       int64
	UserID   int64
	SKUID    int64
	Quantity int
}

// CartLine is a cart item joined with the SKU and product it points at,
// as read at the start of a checkout.
type CartLine struct {
	CartItem
	SKU     SKU
	Product Product
}

type Receiver struct {
	Name    string `json:"name" validate:"required"`
	Phone   string `json:"phone" validate:"required,min=9,max=20"`
	Address string `json:"address" validate:"required"`
}

type Payment struct {
	ID        int64         `json:"id"`
	Status    PaymentStatus `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
	Orders    []Order       `json:"orders,omitempty"`
}

// Total is the amount the gateway must transfer for this payment, computed
// from the order snapshots only.
func (p Payment) Total() int64 {
	var total int64
	for _, o := range p.Orders {
		total += o.Total()
	}
	return total
}

type Order struct {
	ID          int64                `json:"id"`
	UserID      int64                `json:"userId"`
	ShopID      int64                `json:"shopId"`
	Status      OrderStatus          `json:"status"`
	Receiver    Receiver             `json:"receiver"`
	PaymentID   int64                `json:"paymentId"`
	CreatedByID int64                `json:"createdById"`
	UpdatedByID *int64               `json:"updatedById"`
	CreatedAt   time.Time            `json:"createdAt"`
	UpdatedAt   time.Time            `json:"updatedAt"`
	Items       []ProductSKUSnapshot `json:"items"`
}

func (o Order) Total() int64 {
	var total int64
	for _, it := range o.Items {
		total += it.SKUPrice * int64(it.Quantity)
	}
	return total
}

// ProductSKUSnapshot is the immutable copy of catalog data taken when the
// order was placed. SKUID is cleared if the SKU is deleted later.
type ProductSKUSnapshot struct {
	ID                  int64                `json:"id"`
	OrderID             int64                `json:"orderId"`
	ProductID           *int64               `json:"productId"`
	ProductName         string               `json:"productName"`
	ProductTranslations []ProductTranslation `json:"productTranslations"`
	SKUPrice            int64                `json:"skuPrice"`
	SKUValue            string               `json:"skuValue"`
	Image               string               `json:"image"`
	SKUID               *int64               `json:"skuId"`
	Quantity            int                  `json:"quantity"`
	CreatedAt           time.Time            `json:"createdAt"`
}

func SnapshotOf(l CartLine) ProductSKUSnapshot {
	productID, skuID := l.Product.ID, l.SKU.ID
	translations := l.Product.Translations
	if translations == nil {
		translations = []ProductTranslation{}
	}
	return ProductSKUSnapshot{
		ProductID:           &productID,
		ProductName:         l.Product.Name,
		ProductTranslations: translations,
		SKUPrice:            l.SKU.Price,
		SKUValue:            l.SKU.Value,
		Image:               l.SKU.Image,
		SKUID:               &skuID,
		Quantity:            l.Quantity,
	}
}

// PaymentTransaction is one inbound gateway notification. Its ID is the
// gateway's transaction id and doubles as the idempotency marker.
type PaymentTransaction struct {
	ID              int64
	Gateway         string
	TransactionDate time.Time
	AccountNumber   *string
	SubAccount      *string
	AmountIn        int64
	AmountOut       int64
	Accumulated     int64
	Code            *string
	Content         *string
	ReferenceNumber *string
	Body            string
	CreatedAt       time.Time
}

type CheckoutGroup struct {
	ShopID   int64
	Receiver Receiver
	Lines    []CartLine
}

type CheckoutParams struct {
	UserID int64
	Groups []CheckoutGroup
	Stock  []StockDecrement
}

func (p CheckoutParams) CartItemIDs() []int64 {
	var ids []int64
	for _, g := range p.Groups {
		for _, l := range g.Lines {
			ids = append(ids, l.ID)
		}
	}
	return ids
}

// Cancellation is the result of a compensating cancel: every order of the
// payment that was moved to CANCELLED, with its snapshot items.
type Cancellation struct {
	PaymentID int64
	Orders    []Order
}

func (c Cancellation) Find(orderID int64) (Order, bool) {
	for _, o := range c.Orders {
		if o.ID == orderID {
			return o, true
		}
	}
	return Order{}, false
}

func (c Cancellation) OrderIDs() []int64 {
	ids := make([]int64, 0, len(c.Orders))
	for _, o := range c.Orders {
		ids = append(ids, o.ID)
	}
	return ids
}

type ListParams struct {
	Page   int
	Limit  int
	Status OrderStatus
}

func (p ListParams) Normalize() ListParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 || p.Limit > 100 {
		p.Limit = 10
	}
	return p
}

type OrderPage struct {
	Data       []Order `json:"data"`
	TotalItems int     `json:"totalItems"`
	Page       int     `json:"page"`
	Limit      int     `json:"limit"`
	TotalPages int     `json:"totalPages"`
}

func NewOrderPage(data []Order, total int, p ListParams) OrderPage {
	if data == nil {
		data = []Order{}
	}
	return OrderPage{
		Data:       data,
		TotalItems: total,
		Page:       p.Page,
		Limit:      p.Limit,
		TotalPages: (total + p.Limit - 1) / p.Limit,
	}
}
