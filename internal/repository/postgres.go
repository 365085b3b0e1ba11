// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/AlpayBeydemir/ecommerce-graphql/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrProductUnavailable возвращается, если товар не найден или снят с продажи.
var (
	ErrProductUnavailable = errors.New("product unavailable")
	// ErrOrderNotFound возвращается, если заказ не найден или принадлежит другому пользователю.
	ErrOrderNotFound = errors.New("order not found")
	// ErrPaymentNotFound возвращается, если у заказа нет записи об оплате.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrAddressNotOwned возвращается, если адрес не принадлежит пользователю.
	ErrAddressNotOwned = errors.New("address not found or not owned by user")
	// ErrUserExists возвращается при попытке регистрации с занятым email.
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrTokenNotFound возвращается, если токен не найден.
	ErrTokenNotFound = errors.New("token not found")
	// ErrTransient помечает инфраструктурные сбои (дедлок, обрыв соединения),
	// при которых вызывающая сторона может повторить операцию целиком.
	ErrTransient = errors.New("transient storage error")
)

// InsufficientStockError возвращается при нехватке товара на складе.
type InsufficientStockError struct {
	ProductID int64
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// wrapInfra помечает инфраструктурные сбои как ErrTransient, чтобы вызывающая
// сторона могла отличить их от бизнес-ошибок и повторить операцию.
func wrapInfra(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected, pgerrcode.LockNotAvailable:
			return fmt.Errorf("%s: %w: %s", op, ErrTransient, pgErr.Message)
		}
	}

	if isConnectionError(err) {
		return fmt.Errorf("%s: %w: %s", op, ErrTransient, err.Error())
	}

	return fmt.Errorf("%s: %w", op, err)
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// CreateUser создаёт нового пользователя.
func (r *PostgresRepository) CreateUser(ctx context.Context, email, name string, passwordHash []byte) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (email, name, password_hash) VALUES ($1, $2, $3) RETURNING id`,
		email, name, passwordHash,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, fmt.Errorf("%w: %s", ErrUserExists, email)
		}
		return 0, wrapInfra("create user", err)
	}
	return id, nil
}

// UserByEmail возвращает пользователя по email.
func (r *PostgresRepository) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, email, name, password_hash, created_at FROM users WHERE email = $1`,
		email,
	)

	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, wrapInfra("get user", err)
	}

	return &u, nil
}

// AccessTokenByID возвращает токен доступа по идентификатору.
func (r *PostgresRepository) AccessTokenByID(ctx context.Context, id string) (*model.AccessToken, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, user_id, name, revoked, expires_at, created_at FROM access_tokens WHERE id = $1`,
		id,
	)

	var t model.AccessToken
	err := row.Scan(&t.ID, &t.UserID, &t.Name, &t.Revoked, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, wrapInfra("get access token", err)
	}

	return &t, nil
}

// CreateProduct сохраняет новый товар каталога.
func (r *PostgresRepository) CreateProduct(ctx context.Context, p *model.Product) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO products (name, description, sku, category, brand, image_url, price, stock_quantity, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at, updated_at`,
		p.Name, p.Description, p.SKU, p.Category, p.Brand, p.ImageURL, p.PriceCents, p.Stock, p.IsActive,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return wrapInfra("create product", err)
	}
	return nil
}

// UpdateProduct обновляет атрибуты товара.
func (r *PostgresRepository) UpdateProduct(ctx context.Context, p *model.Product) error {
	err := r.pool.QueryRow(ctx,
		`UPDATE products
		 SET name = $2, description = $3, sku = $4, category = $5, brand = $6,
		     image_url = $7, price = $8, stock_quantity = $9, is_active = $10, updated_at = now()
		 WHERE id = $1
		 RETURNING updated_at`,
		p.ID, p.Name, p.Description, p.SKU, p.Category, p.Brand, p.ImageURL, p.PriceCents, p.Stock, p.IsActive,
	).Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrProductUnavailable
		}
		return wrapInfra("update product", err)
	}
	return nil
}

// DeleteProduct удаляет товар из каталога.
func (r *PostgresRepository) DeleteProduct(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return wrapInfra("delete product", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProductUnavailable
	}
	return nil
}

const productColumns = `id, name, description, sku, category, brand, image_url, price, stock_quantity, is_active, created_at, updated_at`

func scanProduct(row pgx.Row) (*model.Product, error) {
	var p model.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.SKU, &p.Category, &p.Brand,
		&p.ImageURL, &p.PriceCents, &p.Stock, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ProductByID возвращает товар по идентификатору.
func (r *PostgresRepository) ProductByID(ctx context.Context, id int64) (*model.Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductUnavailable
		}
		return nil, wrapInfra("get product", err)
	}
	return p, nil
}

// ListProducts возвращает товары каталога; при activeOnly — только активные.
func (r *PostgresRepository) ListProducts(ctx context.Context, activeOnly bool) ([]model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY id`
	if activeOnly {
		query = `SELECT ` + productColumns + ` FROM products WHERE is_active ORDER BY id`
	}

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, wrapInfra("select products", err)
	}
	defer rows.Close()

	var res []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		res = append(res, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapInfra("rows error", err)
	}

	return res, nil
}

// CreateAddress сохраняет новый адрес пользователя.
func (r *PostgresRepository) CreateAddress(ctx context.Context, a *model.Address) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO addresses (user_id, title, full_name, phone, address_line_1, address_line_2,
		                        city, state, postal_code, country, is_default)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id, created_at`,
		a.UserID, a.Title, a.FullName, a.Phone, a.AddressLine1, a.AddressLine2,
		a.City, a.State, a.PostalCode, a.Country, a.IsDefault,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return wrapInfra("create address", err)
	}
	return nil
}

// AddressesByUser возвращает адреса пользователя.
func (r *PostgresRepository) AddressesByUser(ctx context.Context, userID int64) ([]model.Address, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, title, full_name, phone, address_line_1, address_line_2,
		        city, state, postal_code, country, is_default, created_at
		 FROM addresses
		 WHERE user_id = $1
		 ORDER BY is_default DESC, id`,
		userID,
	)
	if err != nil {
		return nil, wrapInfra("select addresses", err)
	}
	defer rows.Close()

	var res []model.Address
	for rows.Next() {
		var a model.Address
		if err := rows.Scan(&a.ID, &a.UserID, &a.Title, &a.FullName, &a.Phone,
			&a.AddressLine1, &a.AddressLine2, &a.City, &a.State,
			&a.PostalCode, &a.Country, &a.IsDefault, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan address: %w", err)
		}
		res = append(res, a)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapInfra("rows error", err)
	}

	return res, nil
}

const orderColumns = `id, order_number, user_id, address_id, status, subtotal, tax, total, notes, created_at, updated_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	err := row.Scan(&o.ID, &o.Number, &o.UserID, &o.AddressID, &o.Status,
		&o.SubtotalCents, &o.TaxCents, &o.TotalCents, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// OrdersByUser возвращает заказы пользователя с позициями и оплатой.
func (r *PostgresRepository) OrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, wrapInfra("select orders", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapInfra("rows error", err)
	}

	for i := range orders {
		if err := r.loadOrderRelations(ctx, &orders[i], false); err != nil {
			return nil, err
		}
	}

	return orders, nil
}

// OrderByNumber возвращает заказ пользователя по номеру с полным графом связей.
func (r *PostgresRepository) OrderByNumber(ctx context.Context, userID int64, number string) (*model.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE order_number = $1 AND user_id = $2`,
		number, userID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, wrapInfra("get order", err)
	}

	if err := r.loadOrderRelations(ctx, o, true); err != nil {
		return nil, err
	}

	return o, nil
}

func (r *PostgresRepository) loadOrderRelations(ctx context.Context, o *model.Order, withAddress bool) error {
	rows, err := r.pool.Query(ctx,
		`SELECT id, order_id, product_id, product_name, price, quantity, subtotal
		 FROM order_items WHERE order_id = $1 ORDER BY id`,
		o.ID,
	)
	if err != nil {
		return wrapInfra("select order items", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName,
			&it.PriceCents, &it.Quantity, &it.SubtotalCents); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return wrapInfra("rows error", err)
	}

	p, err := scanPayment(r.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE order_id = $1`, o.ID))
	if err == nil {
		o.Payment = p
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return wrapInfra("get payment", err)
	}

	if !withAddress {
		return nil
	}

	var a model.Address
	err = r.pool.QueryRow(ctx,
		`SELECT id, user_id, title, full_name, phone, address_line_1, address_line_2,
		        city, state, postal_code, country, is_default, created_at
		 FROM addresses WHERE id = $1`,
		o.AddressID,
	).Scan(&a.ID, &a.UserID, &a.Title, &a.FullName, &a.Phone,
		&a.AddressLine1, &a.AddressLine2, &a.City, &a.State,
		&a.PostalCode, &a.Country, &a.IsDefault, &a.CreatedAt)
	if err == nil {
		o.Address = &a
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return wrapInfra("get address", err)
	}

	return nil
}

const paymentColumns = `id, order_id, transaction_id, payment_method, status, amount, currency, response_data, paid_at, created_at, updated_at`

func scanPayment(row pgx.Row) (*model.Payment, error) {
	var p model.Payment
	var txID *string
	err := row.Scan(&p.ID, &p.OrderID, &txID, &p.Method, &p.Status,
		&p.AmountCents, &p.Currency, &p.ResponseData, &p.PaidAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if txID != nil {
		p.TransactionID = *txID
	}
	return &p, nil
}
