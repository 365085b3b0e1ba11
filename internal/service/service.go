// Package service реализует бизнес-логику магазина: оформление заказа,
// проведение оплаты, отмену и выпуск токенов.
package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/AlpayBeydemir/ecommerce-graphql/internal/gateway"
	"github.com/AlpayBeydemir/ecommerce-graphql/internal/model"
	"github.com/AlpayBeydemir/ecommerce-graphql/internal/pricing"
	"github.com/AlpayBeydemir/ecommerce-graphql/internal/repository"
)

// ErrInvalidQuantity возвращается при неположительном количестве товара.
var (
	ErrInvalidQuantity = errors.New("quantity must be positive")
	// ErrAlreadyCompleted возвращается при оплате уже завершённого заказа.
	ErrAlreadyCompleted = errors.New("order already completed")
	// ErrOrderCancelled возвращается при оплате отменённого заказа.
	ErrOrderCancelled = errors.New("cannot process payment for cancelled order")
	// ErrPaymentProcessed возвращается, если оплата заказа уже проведена.
	ErrPaymentProcessed = errors.New("payment already processed for this order")
	// ErrNotCancellable возвращается при отмене заказа в терминальном статусе.
	ErrNotCancellable = errors.New("order cannot be cancelled")
	// ErrInvalidTransition возвращается при недопустимом переходе статуса заказа.
	ErrInvalidTransition = errors.New("invalid order status transition")
	// ErrInvalidCredentials возвращается при неверном email или пароле.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidRefreshToken возвращается, если токен обновления не найден.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrRefreshTokenRevoked возвращается при попытке использовать отозванный токен обновления.
	ErrRefreshTokenRevoked = errors.New("refresh token has been revoked")
	// ErrRefreshTokenExpired возвращается при попытке использовать просроченный токен обновления.
	ErrRefreshTokenExpired = errors.New("refresh token has expired")
	// ErrAccessTokenInvalid возвращается для отсутствующего, отозванного или просроченного токена доступа.
	ErrAccessTokenInvalid = errors.New("access token invalid")
)

// retryDelays задаёт паузы между повторами операций хранилища.
var retryDelays = []time.Duration{100 * time.Millisecond, 500 * time.Millisecond, 1 * time.Second}

// retryTransient повторяет операцию хранилища при устранимом сбое.
// Применяется только к операциям без побочных эффектов вне хранилища:
// чтениям из пула и транзакциям, не обращающимся к платёжному шлюзу, —
// неудачная попытка у таких операций полностью откатывается, и повтор
// безопасен. Оформление заказа и проведение оплаты не повторяются.
func retryTransient(ctx context.Context, fn func() error) error {
	var err error

	for i := 0; i <= len(retryDelays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		// Если ошибка контекста — выходим сразу
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		if !errors.Is(err, repository.ErrTransient) || i == len(retryDelays) {
			return err
		}

		select {
		case <-time.After(retryDelays[i]):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return err
}

// Tx описывает атомарную единицу работы над хранилищем, используемую сервисом.
// Блокировки, взятые внутри Tx, удерживаются до Commit или Rollback.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	LockProduct(ctx context.Context, productID int64) (*model.Product, error)
	AdjustStock(ctx context.Context, productID int64, delta int) error
	AddressOwned(ctx context.Context, userID, addressID int64) (*model.Address, error)

	CreateOrder(ctx context.Context, o *model.Order) error
	CreateOrderItem(ctx context.Context, it *model.OrderItem) error
	LockOrderByNumber(ctx context.Context, userID int64, number string) (*model.Order, error)
	OrderItems(ctx context.Context, orderID int64) ([]model.OrderItem, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status model.OrderStatus) error

	PaymentByOrder(ctx context.Context, orderID int64) (*model.Payment, error)
	SavePayment(ctx context.Context, p *model.Payment) error

	CreateAccessToken(ctx context.Context, token *model.AccessToken) error
	ReplaceRefreshToken(ctx context.Context, token *model.RefreshToken) error
	RefreshTokenForUpdate(ctx context.Context, id string) (*model.RefreshToken, error)
	AccessTokenByID(ctx context.Context, id string) (*model.AccessToken, error)
	RevokeAccessToken(ctx context.Context, id string) error
	RevokeRefreshToken(ctx context.Context, id string) error
	RevokeRefreshTokenForAccess(ctx context.Context, accessTokenID string) error
	RevokeUserTokens(ctx context.Context, userID int64) error
	UserByID(ctx context.Context, id int64) (*model.User, error)
}

// Store описывает контракт доступа к данным, используемый сервисом.
type Store interface {
	Close() error
	Begin(ctx context.Context) (Tx, error)

	CreateUser(ctx context.Context, email, name string, passwordHash []byte) (int64, error)
	UserByEmail(ctx context.Context, email string) (*model.User, error)
	AccessTokenByID(ctx context.Context, id string) (*model.AccessToken, error)

	CreateProduct(ctx context.Context, p *model.Product) error
	UpdateProduct(ctx context.Context, p *model.Product) error
	DeleteProduct(ctx context.Context, id int64) error
	ProductByID(ctx context.Context, id int64) (*model.Product, error)
	ListProducts(ctx context.Context, activeOnly bool) ([]model.Product, error)

	CreateAddress(ctx context.Context, a *model.Address) error
	AddressesByUser(ctx context.Context, userID int64) ([]model.Address, error)

	OrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)
	OrderByNumber(ctx context.Context, userID int64, number string) (*model.Order, error)
}

// PaymentGateway описывает контракт платёжного шлюза.
type PaymentGateway interface {
	Charge(order *model.Order, method string) gateway.Result
}

// Indexer описывает внешнего участника поисковой индексации товаров.
// Сервис уведомляет его после фиксации изменений и не блокируется
// на результате.
type Indexer interface {
	IndexProduct(ctx context.Context, p *model.Product) error
	DeleteProduct(ctx context.Context, productID int64) error
}

// Config содержит явные параметры бизнес-логики.
type Config struct {
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// Service содержит бизнес-логику магазина.
type Service struct {
	store   Store
	gateway PaymentGateway
	calc    *pricing.Calculator
	indexer Indexer
	logger  *zap.Logger
	cfg     Config
}

// NewService создаёт сервис. indexer может быть nil — тогда уведомления
// поисковой индексации не отправляются.
func NewService(store Store, gw PaymentGateway, calc *pricing.Calculator, indexer Indexer, logger *zap.Logger, cfg Config) *Service {
	return &Service{
		store:   store,
		gateway: gw,
		calc:    calc,
		indexer: indexer,
		logger:  logger,
		cfg:     cfg,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

// pgStore адаптирует *repository.PostgresRepository под интерфейс Store:
// отличие только в типе, возвращаемом Begin.
type pgStore struct {
	*repository.PostgresRepository
}

// NewPostgresStore оборачивает репозиторий PostgreSQL под интерфейс Store.
func NewPostgresStore(r *repository.PostgresRepository) Store {
	return pgStore{r}
}

func (s pgStore) Begin(ctx context.Context) (Tx, error) {
	return s.PostgresRepository.Begin(ctx)
}
