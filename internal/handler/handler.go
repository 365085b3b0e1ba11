// Package handler содержит HTTP-обработчики API магазина.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/AlpayBeydemir/ecommerce-graphql/internal/middleware"
	"github.com/AlpayBeydemir/ecommerce-graphql/internal/model"
	"github.com/AlpayBeydemir/ecommerce-graphql/internal/repository"
	"github.com/AlpayBeydemir/ecommerce-graphql/internal/service"
	"github.com/AlpayBeydemir/ecommerce-graphql/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Register(ctx context.Context, email, name, password string) (*model.User, *model.Credentials, error)
	Login(ctx context.Context, email, password string) (*model.User, *model.Credentials, error)
	RefreshTokens(ctx context.Context, refreshTokenID string) (*model.Credentials, error)
	Logout(ctx context.Context, accessTokenID string) error
	RevokeAllTokens(ctx context.Context, userID int64) error

	Checkout(ctx context.Context, userID, productID int64, quantity int, addressID int64, method, notes string) (*model.Order, error)
	ProcessPayment(ctx context.Context, userID int64, orderNumber, method string) (*model.Payment, error)
	CancelOrder(ctx context.Context, userID int64, orderNumber string) (*model.Order, error)
	OrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)
	OrderByNumber(ctx context.Context, userID int64, number string) (*model.Order, error)

	CreateProduct(ctx context.Context, p *model.Product) error
	UpdateProduct(ctx context.Context, p *model.Product) error
	DeleteProduct(ctx context.Context, id int64) error
	GetProduct(ctx context.Context, id int64) (*model.Product, error)
	ListProducts(ctx context.Context, activeOnly bool) ([]model.Product, error)

	CreateAddress(ctx context.Context, a *model.Address) error
	AddressesByUser(ctx context.Context, userID int64) ([]model.Address, error)
}

// Handler реализует HTTP-обработчики API магазина.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

// cents переводит курушы в лиры для ответа API.
func cents(v int64) float64 {
	return float64(v) / 100
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

type insufficientStockResponse struct {
	Error     string `json:"error"`
	ProductID int64  `json:"product_id"`
	Available int    `json:"available"`
	Requested int    `json:"requested"`
}

// writeServiceError транслирует ошибки бизнес-логики в HTTP-статусы.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error, msg string, fields ...zap.Field) {
	var stockErr *repository.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		writeJSON(w, http.StatusConflict, insufficientStockResponse{
			Error:     "insufficient stock",
			ProductID: stockErr.ProductID,
			Available: stockErr.Available,
			Requested: stockErr.Requested,
		})
	case errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrProductUnavailable),
		errors.Is(err, repository.ErrAddressNotOwned),
		errors.Is(err, repository.ErrUserNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, repository.ErrUserExists):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrAlreadyCompleted),
		errors.Is(err, service.ErrOrderCancelled),
		errors.Is(err, service.ErrPaymentProcessed),
		errors.Is(err, service.ErrNotCancellable),
		errors.Is(err, service.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrInvalidQuantity):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidRefreshToken),
		errors.Is(err, service.ErrRefreshTokenRevoked),
		errors.Is(err, service.ErrRefreshTokenExpired),
		errors.Is(err, service.ErrAccessTokenInvalid):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
	case errors.Is(err, repository.ErrTransient):
		h.logger.Warn(msg, append(fields, zap.Error(err))...)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "temporary failure, retry the request"})
	default:
		h.logger.Error(msg, append(fields, zap.Error(err))...)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type credentialsResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

func newCredentialsResponse(c *model.Credentials) credentialsResponse {
	return credentialsResponse{
		AccessToken:  c.AccessToken,
		TokenType:    c.TokenType,
		ExpiresIn:    c.ExpiresIn,
		RefreshToken: c.RefreshToken,
	}
}

// Register обрабатывает регистрацию нового пользователя и выдаёт пару токенов.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Email == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	_, creds, err := h.service.Register(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		h.writeServiceError(w, err, "register user error", zap.String("email", req.Email))
		return
	}

	writeJSON(w, http.StatusCreated, newCredentialsResponse(creds))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login выполняет аутентификацию пользователя и выдаёт пару токенов.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Email == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	_, creds, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, err, "login user error", zap.String("email", req.Email))
		return
	}

	writeJSON(w, http.StatusOK, newCredentialsResponse(creds))
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh обменивает токен обновления на новую пару токенов.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if !validation.IsValidTokenID(req.RefreshToken) {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	creds, err := h.service.RefreshTokens(r.Context(), req.RefreshToken)
	if err != nil {
		h.writeServiceError(w, err, "refresh tokens error")
		return
	}

	writeJSON(w, http.StatusOK, newCredentialsResponse(creds))
}

// Logout отзывает текущую пару токенов пользователя.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	tokenID, ok := middleware.GetAccessTokenFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	if err := h.service.Logout(r.Context(), tokenID); err != nil {
		h.writeServiceError(w, err, "logout error")
		return
	}

	w.WriteHeader(http.StatusOK)
}

// RevokeAll отзывает все токены текущего пользователя.
func (h *Handler) RevokeAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	if err := h.service.RevokeAllTokens(r.Context(), userID); err != nil {
		h.writeServiceError(w, err, "revoke all tokens error", zap.Int64("userID", userID))
		return
	}

	w.WriteHeader(http.StatusOK)
}

type checkoutRequest struct {
	ProductID     int64  `json:"product_id"`
	Quantity      int    `json:"quantity"`
	AddressID     int64  `json:"address_id"`
	PaymentMethod string `json:"payment_method"`
	Notes         string `json:"notes"`
}

type orderItemResponse struct {
	ProductID   int64   `json:"product_id"`
	ProductName string  `json:"product_name"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
	Subtotal    float64 `json:"subtotal"`
}

type paymentResponse struct {
	TransactionID string  `json:"transaction_id,omitempty"`
	Method        string  `json:"payment_method"`
	Status        string  `json:"status"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	PaidAt        string  `json:"paid_at,omitempty"`
}

type addressResponse struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	FullName     string `json:"full_name"`
	Phone        string `json:"phone"`
	AddressLine1 string `json:"address_line_1"`
	AddressLine2 string `json:"address_line_2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state,omitempty"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country"`
	IsDefault    bool   `json:"is_default"`
}

type orderResponse struct {
	ID        int64               `json:"id"`
	Number    string              `json:"order_number"`
	Status    string              `json:"status"`
	Subtotal  float64             `json:"subtotal"`
	TaxAmount float64             `json:"tax_amount"`
	Total     float64             `json:"total"`
	Notes     string              `json:"notes,omitempty"`
	CreatedAt string              `json:"created_at"`
	Items     []orderItemResponse `json:"items,omitempty"`
	Address   *addressResponse    `json:"address,omitempty"`
	Payment   *paymentResponse    `json:"payment,omitempty"`
}

func newAddressResponse(a *model.Address) *addressResponse {
	return &addressResponse{
		ID:           a.ID,
		Title:        a.Title,
		FullName:     a.FullName,
		Phone:        a.Phone,
		AddressLine1: a.AddressLine1,
		AddressLine2: a.AddressLine2,
		City:         a.City,
		State:        a.State,
		PostalCode:   a.PostalCode,
		Country:      a.Country,
		IsDefault:    a.IsDefault,
	}
}

func newPaymentResponse(p *model.Payment) *paymentResponse {
	resp := &paymentResponse{
		TransactionID: p.TransactionID,
		Method:        p.Method,
		Status:        string(p.Status),
		Amount:        cents(p.AmountCents),
		Currency:      p.Currency,
	}
	if p.PaidAt != nil {
		resp.PaidAt = p.PaidAt.Format(time.RFC3339)
	}
	return resp
}

func newOrderResponse(o *model.Order) orderResponse {
	resp := orderResponse{
		ID:        o.ID,
		Number:    o.Number,
		Status:    string(o.Status),
		Subtotal:  cents(o.SubtotalCents),
		TaxAmount: cents(o.TaxCents),
		Total:     cents(o.TotalCents),
		Notes:     o.Notes,
		CreatedAt: o.CreatedAt.Format(time.RFC3339),
	}
	for _, it := range o.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Price:       cents(it.PriceCents),
			Quantity:    it.Quantity,
			Subtotal:    cents(it.SubtotalCents),
		})
	}
	if o.Address != nil {
		resp.Address = newAddressResponse(o.Address)
	}
	if o.Payment != nil {
		resp.Payment = newPaymentResponse(o.Payment)
	}
	return resp
}

// Checkout оформляет заказ на один товар и сразу проводит оплату.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if !validation.IsValidQuantity(req.Quantity) {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	if !validation.IsValidPaymentMethod(req.PaymentMethod) {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	order, err := h.service.Checkout(r.Context(), userID, req.ProductID, req.Quantity, req.AddressID, req.PaymentMethod, req.Notes)
	if err != nil {
		h.writeServiceError(w, err, "checkout error",
			zap.Int64("userID", userID), zap.Int64("productID", req.ProductID))
		return
	}

	writeJSON(w, http.StatusCreated, newOrderResponse(order))
}

// GetOrders возвращает список заказов текущего пользователя.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orders, err := h.service.OrdersByUser(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err, "get orders error", zap.Int64("userID", userID))
		return
	}

	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, newOrderResponse(&orders[i]))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetOrder возвращает полный граф заказа по его номеру.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	number := chi.URLParam(r, "number")

	order, err := h.service.OrderByNumber(r.Context(), userID, number)
	if err != nil {
		h.writeServiceError(w, err, "get order error",
			zap.Int64("userID", userID), zap.String("order", number))
		return
	}

	writeJSON(w, http.StatusOK, newOrderResponse(order))
}

// CancelOrder отменяет заказ и возвращает товар на склад.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	number := chi.URLParam(r, "number")

	order, err := h.service.CancelOrder(r.Context(), userID, number)
	if err != nil {
		h.writeServiceError(w, err, "cancel order error",
			zap.Int64("userID", userID), zap.String("order", number))
		return
	}

	writeJSON(w, http.StatusOK, newOrderResponse(order))
}

type paymentRequest struct {
	PaymentMethod string `json:"payment_method"`
}

// ProcessPayment проводит оплату существующего заказа.
func (h *Handler) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	number := chi.URLParam(r, "number")

	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if !validation.IsValidPaymentMethod(req.PaymentMethod) {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	payment, err := h.service.ProcessPayment(r.Context(), userID, number, req.PaymentMethod)
	if err != nil {
		h.writeServiceError(w, err, "process payment error",
			zap.Int64("userID", userID), zap.String("order", number))
		return
	}

	writeJSON(w, http.StatusOK, newPaymentResponse(payment))
}

type productRequest struct {
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	SKU           string  `json:"sku"`
	Category      string  `json:"category"`
	Brand         string  `json:"brand"`
	ImageURL      string  `json:"image_url"`
	Price         float64 `json:"price"`
	StockQuantity int     `json:"stock_quantity"`
	IsActive      *bool   `json:"is_active"`
}

type productResponse struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	Description   string  `json:"description,omitempty"`
	SKU           string  `json:"sku"`
	Category      string  `json:"category,omitempty"`
	Brand         string  `json:"brand,omitempty"`
	ImageURL      string  `json:"image_url,omitempty"`
	Price         float64 `json:"price"`
	StockQuantity int     `json:"stock_quantity"`
	IsActive      bool    `json:"is_active"`
	CreatedAt     string  `json:"created_at"`
}

func newProductResponse(p *model.Product) productResponse {
	return productResponse{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		SKU:           p.SKU,
		Category:      p.Category,
		Brand:         p.Brand,
		ImageURL:      p.ImageURL,
		Price:         cents(p.PriceCents),
		StockQuantity: p.Stock,
		IsActive:      p.IsActive,
		CreatedAt:     p.CreatedAt.Format(time.RFC3339),
	}
}

func (req *productRequest) toModel() *model.Product {
	p := &model.Product{
		Name:        req.Name,
		Description: req.Description,
		SKU:         req.SKU,
		Category:    req.Category,
		Brand:       req.Brand,
		ImageURL:    req.ImageURL,
		PriceCents:  int64(req.Price*100 + 0.5),
		Stock:       req.StockQuantity,
		IsActive:    true,
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	return p
}

// CreateProduct добавляет товар в каталог.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Name == "" || req.SKU == "" || req.Price < 0 || req.StockQuantity < 0 {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	p := req.toModel()
	if err := h.service.CreateProduct(r.Context(), p); err != nil {
		h.writeServiceError(w, err, "create product error", zap.String("sku", p.SKU))
		return
	}

	writeJSON(w, http.StatusCreated, newProductResponse(p))
}

// UpdateProduct изменяет товар каталога.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Name == "" || req.SKU == "" || req.Price < 0 || req.StockQuantity < 0 {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	p := req.toModel()
	p.ID = id
	if err := h.service.UpdateProduct(r.Context(), p); err != nil {
		h.writeServiceError(w, err, "update product error", zap.Int64("productID", id))
		return
	}

	writeJSON(w, http.StatusOK, newProductResponse(p))
}

// DeleteProduct удаляет товар из каталога.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		h.writeServiceError(w, err, "delete product error", zap.Int64("productID", id))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetProduct возвращает товар по идентификатору.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	p, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "get product error", zap.Int64("productID", id))
		return
	}

	writeJSON(w, http.StatusOK, newProductResponse(p))
}

// ListProducts возвращает активные товары каталога.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context(), true)
	if err != nil {
		h.writeServiceError(w, err, "list products error")
		return
	}

	resp := make([]productResponse, 0, len(products))
	for i := range products {
		resp = append(resp, newProductResponse(&products[i]))
	}

	writeJSON(w, http.StatusOK, resp)
}

type addressRequest struct {
	Title        string `json:"title"`
	FullName     string `json:"full_name"`
	Phone        string `json:"phone"`
	AddressLine1 string `json:"address_line_1"`
	AddressLine2 string `json:"address_line_2"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country"`
	IsDefault    bool   `json:"is_default"`
}

// CreateAddress добавляет адрес доставки текущего пользователя.
func (h *Handler) CreateAddress(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req addressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.FullName == "" || req.AddressLine1 == "" || req.City == "" || req.Country == "" {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	a := &model.Address{
		UserID:       userID,
		Title:        req.Title,
		FullName:     req.FullName,
		Phone:        req.Phone,
		AddressLine1: req.AddressLine1,
		AddressLine2: req.AddressLine2,
		City:         req.City,
		State:        req.State,
		PostalCode:   req.PostalCode,
		Country:      req.Country,
		IsDefault:    req.IsDefault,
	}

	if err := h.service.CreateAddress(r.Context(), a); err != nil {
		h.writeServiceError(w, err, "create address error", zap.Int64("userID", userID))
		return
	}

	writeJSON(w, http.StatusCreated, newAddressResponse(a))
}

// GetAddresses возвращает адреса доставки текущего пользователя.
func (h *Handler) GetAddresses(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	addresses, err := h.service.AddressesByUser(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err, "get addresses error", zap.Int64("userID", userID))
		return
	}

	resp := make([]*addressResponse, 0, len(addresses))
	for i := range addresses {
		resp = append(resp, newAddressResponse(&addresses[i]))
	}

	writeJSON(w, http.StatusOK, resp)
}
