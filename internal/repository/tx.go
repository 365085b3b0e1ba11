package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/AlpayBeydemir/ecommerce-graphql/internal/model"
)

// Tx — атомарная единица работы над хранилищем. Блокировки строк,
// взятые внутри Tx, удерживаются до Commit или Rollback.
type Tx struct {
	tx pgx.Tx
}

// Begin открывает транзакцию.
func (r *PostgresRepository) Begin(ctx context.Context) (*Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, wrapInfra("begin tx", err)
	}
	return &Tx{tx: tx}, nil
}

// Commit фиксирует транзакцию.
func (t *Tx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return wrapInfra("commit tx", err)
	}
	return nil
}

// Rollback откатывает транзакцию. Безопасен после Commit.
func (t *Tx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("rollback tx: %w", err)
	}
	return nil
}

// LockProduct берёт эксклюзивную блокировку строки товара и возвращает его
// снимок. Параллельные резервирования того же товара сериализуются на этой
// блокировке. Отсутствующий или неактивный товар — ErrProductUnavailable.
func (t *Tx) LockProduct(ctx context.Context, productID int64) (*model.Product, error) {
	p, err := scanProduct(t.tx.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`,
		productID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: product %d", ErrProductUnavailable, productID)
		}
		return nil, wrapInfra("lock product", err)
	}
	if !p.IsActive {
		return nil, fmt.Errorf("%w: product %d is inactive", ErrProductUnavailable, productID)
	}
	return p, nil
}

// AdjustStock изменяет остаток товара на delta. Ограничение схемы
// stock_quantity >= 0 страхует от ухода в минус.
func (t *Tx) AdjustStock(ctx context.Context, productID int64, delta int) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE products SET stock_quantity = stock_quantity + $2, updated_at = now() WHERE id = $1`,
		productID, delta,
	)
	if err != nil {
		return wrapInfra("adjust stock", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: product %d", ErrProductUnavailable, productID)
	}
	return nil
}

// AddressOwned проверяет, что адрес принадлежит пользователю, и возвращает
// его строку для включения в граф заказа.
func (t *Tx) AddressOwned(ctx context.Context, userID, addressID int64) (*model.Address, error) {
	var a model.Address
	err := t.tx.QueryRow(ctx,
		`SELECT id, user_id, title, full_name, phone, address_line_1, address_line_2,
		        city, state, postal_code, country, is_default, created_at
		 FROM addresses WHERE id = $1 AND user_id = $2`,
		addressID, userID,
	).Scan(&a.ID, &a.UserID, &a.Title, &a.FullName, &a.Phone,
		&a.AddressLine1, &a.AddressLine2, &a.City, &a.State,
		&a.PostalCode, &a.Country, &a.IsDefault, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: address %d", ErrAddressNotOwned, addressID)
		}
		return nil, wrapInfra("check address", err)
	}
	return &a, nil
}

// CreateOrder сохраняет новый заказ и заполняет его идентификатор и метки времени.
func (t *Tx) CreateOrder(ctx context.Context, o *model.Order) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO orders (order_number, user_id, address_id, status, subtotal, tax, total, notes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at, updated_at`,
		o.Number, o.UserID, o.AddressID, string(o.Status),
		o.SubtotalCents, o.TaxCents, o.TotalCents, o.Notes,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return wrapInfra("create order", err)
	}
	return nil
}

// CreateOrderItem сохраняет позицию заказа со снимком товара.
func (t *Tx) CreateOrderItem(ctx context.Context, it *model.OrderItem) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO order_items (order_id, product_id, product_name, price, quantity, subtotal)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		it.OrderID, it.ProductID, it.ProductName, it.PriceCents, it.Quantity, it.SubtotalCents,
	).Scan(&it.ID)
	if err != nil {
		return wrapInfra("create order item", err)
	}
	return nil
}

// LockOrderByNumber берёт блокировку строки заказа пользователя по номеру.
func (t *Tx) LockOrderByNumber(ctx context.Context, userID int64, number string) (*model.Order, error) {
	o, err := scanOrder(t.tx.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE order_number = $1 AND user_id = $2 FOR UPDATE`,
		number, userID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: order %s", ErrOrderNotFound, number)
		}
		return nil, wrapInfra("lock order", err)
	}
	return o, nil
}

// OrderItems возвращает позиции заказа.
func (t *Tx) OrderItems(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT id, order_id, product_id, product_name, price, quantity, subtotal
		 FROM order_items WHERE order_id = $1 ORDER BY id`,
		orderID,
	)
	if err != nil {
		return nil, wrapInfra("select order items", err)
	}
	defer rows.Close()

	var res []model.OrderItem
	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName,
			&it.PriceCents, &it.Quantity, &it.SubtotalCents); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		res = append(res, it)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapInfra("rows error", err)
	}

	return res, nil
}

// UpdateOrderStatus записывает новый статус заказа с меткой времени.
func (t *Tx) UpdateOrderStatus(ctx context.Context, orderID int64, status model.OrderStatus) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`,
		orderID, string(status),
	)
	if err != nil {
		return wrapInfra("update order status", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: order %d", ErrOrderNotFound, orderID)
	}
	return nil
}

// PaymentByOrder возвращает запись об оплате заказа.
func (t *Tx) PaymentByOrder(ctx context.Context, orderID int64) (*model.Payment, error) {
	p, err := scanPayment(t.tx.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE order_id = $1`, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: order %d", ErrPaymentNotFound, orderID)
		}
		return nil, wrapInfra("get payment", err)
	}
	return p, nil
}

// SavePayment сохраняет запись об оплате: вставляет новую или обновляет
// существующую по идентификатору.
func (t *Tx) SavePayment(ctx context.Context, p *model.Payment) error {
	var txID *string
	if p.TransactionID != "" {
		txID = &p.TransactionID
	}

	if p.ID == 0 {
		err := t.tx.QueryRow(ctx,
			`INSERT INTO payments (order_id, transaction_id, payment_method, status, amount, currency, response_data, paid_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 RETURNING id, created_at, updated_at`,
			p.OrderID, txID, p.Method, string(p.Status), p.AmountCents, p.Currency, p.ResponseData, p.PaidAt,
		).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return wrapInfra("insert payment", err)
		}
		return nil
	}

	err := t.tx.QueryRow(ctx,
		`UPDATE payments
		 SET transaction_id = $2, payment_method = $3, status = $4, amount = $5,
		     currency = $6, response_data = $7, paid_at = $8, updated_at = now()
		 WHERE id = $1
		 RETURNING updated_at`,
		p.ID, txID, p.Method, string(p.Status), p.AmountCents, p.Currency, p.ResponseData, p.PaidAt,
	).Scan(&p.UpdatedAt)
	if err != nil {
		return wrapInfra("update payment", err)
	}
	return nil
}

// CreateAccessToken сохраняет новый токен доступа.
func (t *Tx) CreateAccessToken(ctx context.Context, token *model.AccessToken) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO access_tokens (id, user_id, name, revoked, expires_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		token.ID, token.UserID, token.Name, token.Revoked, token.ExpiresAt,
	)
	if err != nil {
		return wrapInfra("create access token", err)
	}
	return nil
}

// ReplaceRefreshToken создаёт токен обновления, предварительно удаляя
// прежний токен обновления того же токена доступа: на один токен доступа
// приходится не более одного токена обновления.
func (t *Tx) ReplaceRefreshToken(ctx context.Context, token *model.RefreshToken) error {
	_, err := t.tx.Exec(ctx,
		`DELETE FROM refresh_tokens WHERE access_token_id = $1`,
		token.AccessTokenID,
	)
	if err != nil {
		return wrapInfra("delete refresh token", err)
	}

	_, err = t.tx.Exec(ctx,
		`INSERT INTO refresh_tokens (id, access_token_id, revoked, expires_at)
		 VALUES ($1, $2, $3, $4)`,
		token.ID, token.AccessTokenID, token.Revoked, token.ExpiresAt,
	)
	if err != nil {
		return wrapInfra("insert refresh token", err)
	}
	return nil
}

// RefreshTokenForUpdate возвращает токен обновления под блокировкой строки,
// чтобы параллельные попытки обновления по одному токену сериализовались.
func (t *Tx) RefreshTokenForUpdate(ctx context.Context, id string) (*model.RefreshToken, error) {
	var token model.RefreshToken
	err := t.tx.QueryRow(ctx,
		`SELECT id, access_token_id, revoked, expires_at FROM refresh_tokens WHERE id = $1 FOR UPDATE`,
		id,
	).Scan(&token.ID, &token.AccessTokenID, &token.Revoked, &token.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, wrapInfra("lock refresh token", err)
	}
	return &token, nil
}

// AccessTokenByID возвращает токен доступа в рамках транзакции.
func (t *Tx) AccessTokenByID(ctx context.Context, id string) (*model.AccessToken, error) {
	var token model.AccessToken
	err := t.tx.QueryRow(ctx,
		`SELECT id, user_id, name, revoked, expires_at, created_at FROM access_tokens WHERE id = $1`,
		id,
	).Scan(&token.ID, &token.UserID, &token.Name, &token.Revoked, &token.ExpiresAt, &token.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, wrapInfra("get access token", err)
	}
	return &token, nil
}

// RevokeAccessToken помечает токен доступа отозванным. Отзыв необратим.
func (t *Tx) RevokeAccessToken(ctx context.Context, id string) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE access_tokens SET revoked = true WHERE id = $1`, id)
	if err != nil {
		return wrapInfra("revoke access token", err)
	}
	return nil
}

// RevokeRefreshToken помечает токен обновления отозванным.
func (t *Tx) RevokeRefreshToken(ctx context.Context, id string) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE refresh_tokens SET revoked = true WHERE id = $1`, id)
	if err != nil {
		return wrapInfra("revoke refresh token", err)
	}
	return nil
}

// RevokeRefreshTokenForAccess помечает отозванным токен обновления,
// привязанный к указанному токену доступа.
func (t *Tx) RevokeRefreshTokenForAccess(ctx context.Context, accessTokenID string) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE refresh_tokens SET revoked = true WHERE access_token_id = $1`, accessTokenID)
	if err != nil {
		return wrapInfra("revoke refresh token", err)
	}
	return nil
}

// RevokeUserTokens отзывает все токены доступа пользователя вместе с их
// токенами обновления.
func (t *Tx) RevokeUserTokens(ctx context.Context, userID int64) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE refresh_tokens SET revoked = true
		 WHERE access_token_id IN (SELECT id FROM access_tokens WHERE user_id = $1)`,
		userID,
	)
	if err != nil {
		return wrapInfra("revoke refresh tokens", err)
	}

	_, err = t.tx.Exec(ctx,
		`UPDATE access_tokens SET revoked = true WHERE user_id = $1`, userID)
	if err != nil {
		return wrapInfra("revoke access tokens", err)
	}
	return nil
}

// UserByID возвращает пользователя в рамках транзакции.
func (t *Tx) UserByID(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	err := t.tx.QueryRow(ctx,
		`SELECT id, email, name, password_hash, created_at FROM users WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, wrapInfra("get user", err)
	}
	return &u, nil
}
