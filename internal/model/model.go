// Package model содержит доменные сущности магазина.
package model

import "time"

// User представляет зарегистрированного пользователя магазина.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash []byte
	CreatedAt    time.Time
}

// Product описывает товар каталога. Цена хранится в курушах.
type Product struct {
	ID          int64
	Name        string
	Description string
	SKU         string
	Category    string
	Brand       string
	ImageURL    string
	PriceCents  int64
	Stock       int
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Address описывает адрес доставки пользователя.
type Address struct {
	ID           int64
	UserID       int64
	Title        string
	FullName     string
	Phone        string
	AddressLine1 string
	AddressLine2 string
	City         string
	State        string
	PostalCode   string
	Country      string
	IsDefault    bool
	CreatedAt    time.Time
}

// Order описывает заказ пользователя и его денежные итоги в курушах.
type Order struct {
	ID            int64
	Number        string
	UserID        int64
	AddressID     int64
	Status        OrderStatus
	SubtotalCents int64
	TaxCents      int64
	TotalCents    int64
	Notes         string
	CreatedAt     time.Time
	UpdatedAt     time.Time

	// Связанные записи, заполняются при выборке полного графа заказа.
	Items   []OrderItem
	Address *Address
	Payment *Payment
}

// OrderItem — позиция заказа со снимком товара на момент покупки.
// Запись создаётся один раз и никогда не изменяется, даже если товар
// позже переименуют или переоценят.
type OrderItem struct {
	ID            int64
	OrderID       int64
	ProductID     int64
	ProductName   string
	PriceCents    int64
	Quantity      int
	SubtotalCents int64
}

// Payment описывает попытку оплаты заказа. У заказа не более одной
// записи об оплате.
type Payment struct {
	ID            int64
	OrderID       int64
	TransactionID string
	Method        string
	Status        PaymentStatus
	AmountCents   int64
	Currency      string
	ResponseData  []byte
	PaidAt        *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// AccessToken — токен доступа, привязанный к пользователю.
type AccessToken struct {
	ID        string
	UserID    int64
	Name      string
	Revoked   bool
	ExpiresAt time.Time
	CreatedAt time.Time
}

// RefreshToken — токен обновления, привязанный ровно к одному токену доступа.
type RefreshToken struct {
	ID            string
	AccessTokenID string
	Revoked       bool
	ExpiresAt     time.Time
}

// Credentials — пара токенов, выдаваемая при входе и при обновлении.
type Credentials struct {
	AccessToken  string
	TokenType    string
	ExpiresIn    int64
	RefreshToken string
}
