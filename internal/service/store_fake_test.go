package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/AlpayBeydemir/ecommerce-graphql/internal/gateway"
	"github.com/AlpayBeydemir/ecommerce-graphql/internal/model"
	"github.com/AlpayBeydemir/ecommerce-graphql/internal/pricing"
	"github.com/AlpayBeydemir/ecommerce-graphql/internal/repository"
)

// fakeStore — хранилище в памяти для тестов сервиса. Begin захватывает
// общий мьютекс до Commit/Rollback, имитируя сериализацию конкурирующих
// транзакций на блокировке строки. Rollback возвращает хранилище к снимку,
// сделанному в Begin, поэтому прерванная транзакция не оставляет частичных
// записей.
type fakeStore struct {
	mu  sync.Mutex
	seq int64

	users     map[int64]*model.User
	products  map[int64]*model.Product
	addresses map[int64]*model.Address
	orders    map[int64]*model.Order
	items     map[int64][]model.OrderItem
	payments  map[int64]*model.Payment // по идентификатору заказа
	access    map[string]*model.AccessToken
	refresh   map[string]*model.RefreshToken

	// Инъекция сбоя для проверки отката.
	failCreateOrderItem error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:     make(map[int64]*model.User),
		products:  make(map[int64]*model.Product),
		addresses: make(map[int64]*model.Address),
		orders:    make(map[int64]*model.Order),
		items:     make(map[int64][]model.OrderItem),
		payments:  make(map[int64]*model.Payment),
		access:    make(map[string]*model.AccessToken),
		refresh:   make(map[string]*model.RefreshToken),
	}
}

func (f *fakeStore) nextID() int64 {
	f.seq++
	return f.seq
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) Begin(ctx context.Context) (Tx, error) {
	f.mu.Lock()
	return &fakeTx{s: f, snap: f.snapshotLocked()}, nil
}

// storeSnapshot — копия состояния хранилища на момент Begin.
type storeSnapshot struct {
	seq       int64
	users     map[int64]*model.User
	products  map[int64]*model.Product
	addresses map[int64]*model.Address
	orders    map[int64]*model.Order
	items     map[int64][]model.OrderItem
	payments  map[int64]*model.Payment
	access    map[string]*model.AccessToken
	refresh   map[string]*model.RefreshToken
}

func clonePtrMap[K comparable, V any](m map[K]*V) map[K]*V {
	out := make(map[K]*V, len(m))
	for k, v := range m {
		cp := *v
		out[k] = &cp
	}
	return out
}

func cloneItems(m map[int64][]model.OrderItem) map[int64][]model.OrderItem {
	out := make(map[int64][]model.OrderItem, len(m))
	for k, v := range m {
		out[k] = append([]model.OrderItem(nil), v...)
	}
	return out
}

func (f *fakeStore) snapshotLocked() *storeSnapshot {
	return &storeSnapshot{
		seq:       f.seq,
		users:     clonePtrMap(f.users),
		products:  clonePtrMap(f.products),
		addresses: clonePtrMap(f.addresses),
		orders:    clonePtrMap(f.orders),
		items:     cloneItems(f.items),
		payments:  clonePtrMap(f.payments),
		access:    clonePtrMap(f.access),
		refresh:   clonePtrMap(f.refresh),
	}
}

func (f *fakeStore) restoreLocked(s *storeSnapshot) {
	f.seq = s.seq
	f.users = s.users
	f.products = s.products
	f.addresses = s.addresses
	f.orders = s.orders
	f.items = s.items
	f.payments = s.payments
	f.access = s.access
	f.refresh = s.refresh
}

func (f *fakeStore) CreateUser(ctx context.Context, email, name string, passwordHash []byte) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return 0, repository.ErrUserExists
		}
	}
	id := f.nextID()
	f.users[id] = &model.User{ID: id, Email: email, Name: name, PasswordHash: passwordHash, CreatedAt: time.Now()}
	return id, nil
}

func (f *fakeStore) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (f *fakeStore) AccessTokenByID(ctx context.Context, id string) (*model.AccessToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.access[id]
	if !ok {
		return nil, repository.ErrTokenNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeStore) CreateProduct(ctx context.Context, p *model.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID = f.nextID()
	cp := *p
	f.products[p.ID] = &cp
	return nil
}

func (f *fakeStore) UpdateProduct(ctx context.Context, p *model.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.products[p.ID]; !ok {
		return repository.ErrProductUnavailable
	}
	cp := *p
	f.products[p.ID] = &cp
	return nil
}

func (f *fakeStore) DeleteProduct(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.products[id]; !ok {
		return repository.ErrProductUnavailable
	}
	delete(f.products, id)
	return nil
}

func (f *fakeStore) ProductByID(ctx context.Context, id int64) (*model.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, repository.ErrProductUnavailable
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) ListProducts(ctx context.Context, activeOnly bool) ([]model.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res []model.Product
	for _, p := range f.products {
		if activeOnly && !p.IsActive {
			continue
		}
		res = append(res, *p)
	}
	return res, nil
}

func (f *fakeStore) CreateAddress(ctx context.Context, a *model.Address) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a.ID = f.nextID()
	cp := *a
	f.addresses[a.ID] = &cp
	return nil
}

func (f *fakeStore) AddressesByUser(ctx context.Context, userID int64) ([]model.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res []model.Address
	for _, a := range f.addresses {
		if a.UserID == userID {
			res = append(res, *a)
		}
	}
	return res, nil
}

func (f *fakeStore) OrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res []model.Order
	for _, o := range f.orders {
		if o.UserID == userID {
			res = append(res, f.orderGraphLocked(o))
		}
	}
	return res, nil
}

func (f *fakeStore) OrderByNumber(ctx context.Context, userID int64, number string) (*model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.UserID == userID && o.Number == number {
			g := f.orderGraphLocked(o)
			return &g, nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (f *fakeStore) orderGraphLocked(o *model.Order) model.Order {
	g := *o
	g.Items = append([]model.OrderItem(nil), f.items[o.ID]...)
	if p, ok := f.payments[o.ID]; ok {
		cp := *p
		g.Payment = &cp
	}
	if a, ok := f.addresses[o.AddressID]; ok {
		cp := *a
		g.Address = &cp
	}
	return g
}

// Вспомогательные конструкторы тестовых данных.

func (f *fakeStore) addUser(email string, hash []byte) *model.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID()
	u := &model.User{ID: id, Email: email, PasswordHash: hash}
	f.users[id] = u
	return u
}

func (f *fakeStore) addProduct(name string, priceCents int64, stock int, active bool) *model.Product {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID()
	p := &model.Product{ID: id, Name: name, PriceCents: priceCents, Stock: stock, IsActive: active}
	f.products[id] = p
	return p
}

func (f *fakeStore) addAddress(userID int64) *model.Address {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID()
	a := &model.Address{ID: id, UserID: userID}
	f.addresses[id] = a
	return a
}

func (f *fakeStore) productStock(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[id].Stock
}

// fakeTx выполняет операции прямо над fakeStore; мьютекс хранилища
// удерживается от Begin до Commit или Rollback.
type fakeTx struct {
	s    *fakeStore
	snap *storeSnapshot
	done bool
}

func (t *fakeTx) finish() {
	if !t.done {
		t.done = true
		t.s.mu.Unlock()
	}
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.finish()
	return nil
}

// Rollback возвращает хранилище к снимку Begin. Безопасен после Commit.
func (t *fakeTx) Rollback(ctx context.Context) error {
	if !t.done {
		t.s.restoreLocked(t.snap)
	}
	t.finish()
	return nil
}

func (t *fakeTx) LockProduct(ctx context.Context, productID int64) (*model.Product, error) {
	p, ok := t.s.products[productID]
	if !ok || !p.IsActive {
		return nil, repository.ErrProductUnavailable
	}
	cp := *p
	return &cp, nil
}

func (t *fakeTx) AdjustStock(ctx context.Context, productID int64, delta int) error {
	p, ok := t.s.products[productID]
	if !ok {
		return repository.ErrProductUnavailable
	}
	if p.Stock+delta < 0 {
		return fmt.Errorf("stock constraint violated for product %d", productID)
	}
	p.Stock += delta
	return nil
}

func (t *fakeTx) AddressOwned(ctx context.Context, userID, addressID int64) (*model.Address, error) {
	a, ok := t.s.addresses[addressID]
	if !ok || a.UserID != userID {
		return nil, repository.ErrAddressNotOwned
	}
	cp := *a
	return &cp, nil
}

func (t *fakeTx) CreateOrder(ctx context.Context, o *model.Order) error {
	o.ID = t.s.nextID()
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	cp := *o
	cp.Items = nil
	cp.Payment = nil
	t.s.orders[o.ID] = &cp
	return nil
}

func (t *fakeTx) CreateOrderItem(ctx context.Context, it *model.OrderItem) error {
	if t.s.failCreateOrderItem != nil {
		return t.s.failCreateOrderItem
	}
	it.ID = t.s.nextID()
	t.s.items[it.OrderID] = append(t.s.items[it.OrderID], *it)
	return nil
}

func (t *fakeTx) LockOrderByNumber(ctx context.Context, userID int64, number string) (*model.Order, error) {
	for _, o := range t.s.orders {
		if o.UserID == userID && o.Number == number {
			cp := *o
			return &cp, nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (t *fakeTx) OrderItems(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	return append([]model.OrderItem(nil), t.s.items[orderID]...), nil
}

func (t *fakeTx) UpdateOrderStatus(ctx context.Context, orderID int64, status model.OrderStatus) error {
	o, ok := t.s.orders[orderID]
	if !ok {
		return repository.ErrOrderNotFound
	}
	o.Status = status
	o.UpdatedAt = time.Now()
	return nil
}

func (t *fakeTx) PaymentByOrder(ctx context.Context, orderID int64) (*model.Payment, error) {
	p, ok := t.s.payments[orderID]
	if !ok {
		return nil, repository.ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (t *fakeTx) SavePayment(ctx context.Context, p *model.Payment) error {
	if p.ID == 0 {
		p.ID = t.s.nextID()
	}
	cp := *p
	t.s.payments[p.OrderID] = &cp
	return nil
}

func (t *fakeTx) CreateAccessToken(ctx context.Context, token *model.AccessToken) error {
	cp := *token
	t.s.access[token.ID] = &cp
	return nil
}

func (t *fakeTx) ReplaceRefreshToken(ctx context.Context, token *model.RefreshToken) error {
	for id, rt := range t.s.refresh {
		if rt.AccessTokenID == token.AccessTokenID {
			delete(t.s.refresh, id)
		}
	}
	cp := *token
	t.s.refresh[token.ID] = &cp
	return nil
}

func (t *fakeTx) RefreshTokenForUpdate(ctx context.Context, id string) (*model.RefreshToken, error) {
	rt, ok := t.s.refresh[id]
	if !ok {
		return nil, repository.ErrTokenNotFound
	}
	cp := *rt
	return &cp, nil
}

func (t *fakeTx) AccessTokenByID(ctx context.Context, id string) (*model.AccessToken, error) {
	at, ok := t.s.access[id]
	if !ok {
		return nil, repository.ErrTokenNotFound
	}
	cp := *at
	return &cp, nil
}

func (t *fakeTx) RevokeAccessToken(ctx context.Context, id string) error {
	if at, ok := t.s.access[id]; ok {
		at.Revoked = true
	}
	return nil
}

func (t *fakeTx) RevokeRefreshToken(ctx context.Context, id string) error {
	if rt, ok := t.s.refresh[id]; ok {
		rt.Revoked = true
	}
	return nil
}

func (t *fakeTx) RevokeRefreshTokenForAccess(ctx context.Context, accessTokenID string) error {
	for _, rt := range t.s.refresh {
		if rt.AccessTokenID == accessTokenID {
			rt.Revoked = true
		}
	}
	return nil
}

func (t *fakeTx) RevokeUserTokens(ctx context.Context, userID int64) error {
	for _, at := range t.s.access {
		if at.UserID == userID {
			at.Revoked = true
			for _, rt := range t.s.refresh {
				if rt.AccessTokenID == at.ID {
					rt.Revoked = true
				}
			}
		}
	}
	return nil
}

func (t *fakeTx) UserByID(ctx context.Context, id int64) (*model.User, error) {
	u, ok := t.s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

// fixedGateway всегда отвечает заранее заданным исходом.
type fixedGateway struct {
	approve bool
}

func (g fixedGateway) Charge(order *model.Order, method string) gateway.Result {
	if g.approve {
		return gateway.Result{
			Success:       true,
			TransactionID: fmt.Sprintf("FKG-TEST-%d", order.ID),
			AmountCents:   order.TotalCents,
			Currency:      "TRY",
			Timestamp:     time.Now(),
		}
	}
	return gateway.Result{
		Success:   false,
		ErrorCode: gateway.ErrCodeInsufficientFunds,
		Timestamp: time.Now(),
	}
}

func newTestService(store Store, approve bool) *Service {
	calc, err := pricing.NewCalculator("0.18")
	if err != nil {
		panic(err)
	}
	return NewService(store, fixedGateway{approve: approve}, calc, nil, zap.NewNop(), Config{
		AccessTokenTTL:  4380 * time.Hour,
		RefreshTokenTTL: 720 * time.Hour,
	})
}
