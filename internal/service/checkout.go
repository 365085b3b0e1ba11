package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/AlpayBeydemir/ecommerce-graphql/internal/model"
	"github.com/AlpayBeydemir/ecommerce-graphql/internal/repository"
)

// Checkout оформляет покупку одного товара одной атомарной единицей работы:
// проверяет принадлежность адреса, под блокировкой строки товара резервирует
// остаток, рассчитывает стоимость, создаёт заказ с позицией-снимком и тут же
// проводит оплату. Отказ шлюза — допустимый зафиксированный исход: заказ
// остаётся в статусе failed, остаток возвращён в той же транзакции.
func (s *Service) Checkout(ctx context.Context, userID, productID int64, quantity int, addressID int64, method, notes string) (*model.Order, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidQuantity, quantity)
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	address, err := tx.AddressOwned(ctx, userID, addressID)
	if err != nil {
		return nil, err
	}

	product, err := tx.LockProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	if product.Stock < quantity {
		return nil, &repository.InsufficientStockError{
			ProductID: productID,
			Available: product.Stock,
			Requested: quantity,
		}
	}

	if err := tx.AdjustStock(ctx, productID, -quantity); err != nil {
		return nil, err
	}

	quote := s.calc.Price(product.PriceCents, quantity)

	order := &model.Order{
		Number:        uuid.NewString(),
		UserID:        userID,
		AddressID:     addressID,
		Status:        model.OrderStatusPending,
		SubtotalCents: quote.SubtotalCents,
		TaxCents:      quote.TaxCents,
		TotalCents:    quote.TotalCents,
		Notes:         notes,
	}
	if err := tx.CreateOrder(ctx, order); err != nil {
		return nil, err
	}

	item := &model.OrderItem{
		OrderID:       order.ID,
		ProductID:     product.ID,
		ProductName:   product.Name,
		PriceCents:    product.PriceCents,
		Quantity:      quantity,
		SubtotalCents: quote.SubtotalCents,
	}
	if err := tx.CreateOrderItem(ctx, item); err != nil {
		return nil, err
	}
	order.Items = []model.OrderItem{*item}
	order.Address = address

	payment, err := s.settle(ctx, tx, order, method)
	if err != nil {
		return nil, err
	}
	order.Payment = payment

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return order, nil
}

// CancelOrder отменяет заказ пользователя: возвращает остатки по всем позициям,
// переводит заказ в cancelled, а завершённую оплату помечает возвращённой.
// Реального обращения к шлюзу за возвратом нет, это учётная компенсация,
// поэтому устранимые сбои хранилища повторяются.
func (s *Service) CancelOrder(ctx context.Context, userID int64, orderNumber string) (*model.Order, error) {
	var order *model.Order
	err := retryTransient(ctx, func() (err error) {
		order, err = s.cancelOrder(ctx, userID, orderNumber)
		return err
	})
	return order, err
}

func (s *Service) cancelOrder(ctx context.Context, userID int64, orderNumber string) (*model.Order, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	order, err := tx.LockOrderByNumber(ctx, userID, orderNumber)
	if err != nil {
		return nil, err
	}

	if order.Status != model.OrderStatusPending && order.Status != model.OrderStatusProcessing {
		return nil, fmt.Errorf("%w: status %s", ErrNotCancellable, order.Status)
	}

	items, err := tx.OrderItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if err := tx.AdjustStock(ctx, it.ProductID, it.Quantity); err != nil {
			return nil, err
		}
	}

	if err := transition(ctx, tx, order, model.OrderStatusCancelled); err != nil {
		return nil, err
	}

	payment, err := tx.PaymentByOrder(ctx, order.ID)
	switch {
	case err == nil:
		if payment.Status == model.PaymentStatusCompleted {
			payment.Status = model.PaymentStatusRefunded
			if err := tx.SavePayment(ctx, payment); err != nil {
				return nil, err
			}
		}
	case errors.Is(err, repository.ErrPaymentNotFound):
		// У неоплаченного заказа записи об оплате может не быть.
	default:
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return s.store.OrderByNumber(ctx, userID, orderNumber)
}

// transition выполняет переход статуса заказа, проверяя его по машине состояний.
func transition(ctx context.Context, tx Tx, order *model.Order, next model.OrderStatus) error {
	if !order.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, next)
	}
	if err := tx.UpdateOrderStatus(ctx, order.ID, next); err != nil {
		return err
	}
	order.Status = next
	return nil
}
