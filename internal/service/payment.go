package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/AlpayBeydemir/ecommerce-graphql/internal/model"
	"github.com/AlpayBeydemir/ecommerce-graphql/internal/repository"
)

// ProcessPayment проводит оплату ранее созданного заказа пользователя
// одной атомарной единицей работы.
func (s *Service) ProcessPayment(ctx context.Context, userID int64, orderNumber, method string) (*model.Payment, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	order, err := tx.LockOrderByNumber(ctx, userID, orderNumber)
	if err != nil {
		return nil, err
	}

	payment, err := s.settle(ctx, tx, order, method)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return payment, nil
}

// settle проводит оплату заказа внутри открытой транзакции: создаёт или
// переиспользует запись об оплате, обращается к шлюзу и записывает исход.
// При одобрении заказ переходит в completed; при отказе — в failed, и в той
// же транзакции возвращаются остатки по всем позициям. Перевод статуса и
// компенсация фиксируются только вместе.
func (s *Service) settle(ctx context.Context, tx Tx, order *model.Order, method string) (*model.Payment, error) {
	// Терминальный заказ отклоняется до обращения к шлюзу.
	switch {
	case order.Status == model.OrderStatusCompleted:
		return nil, fmt.Errorf("%w: order %s", ErrAlreadyCompleted, order.Number)
	case order.Status == model.OrderStatusCancelled:
		return nil, fmt.Errorf("%w: order %s", ErrOrderCancelled, order.Number)
	case order.Status.Terminal():
		return nil, fmt.Errorf("%w: order %s is %s", ErrInvalidTransition, order.Number, order.Status)
	}

	payment, err := tx.PaymentByOrder(ctx, order.ID)
	switch {
	case err == nil:
		if payment.Status == model.PaymentStatusCompleted {
			return nil, fmt.Errorf("%w: order %s", ErrPaymentProcessed, order.Number)
		}
	case errors.Is(err, repository.ErrPaymentNotFound):
		payment = &model.Payment{OrderID: order.ID}
	default:
		return nil, err
	}

	payment.Method = method
	payment.AmountCents = order.TotalCents
	payment.Currency = "TRY"
	payment.Status = model.PaymentStatusPending

	res := s.gateway.Charge(order, method)
	payment.ResponseData = res.Payload()

	if res.Success {
		payment.Status = model.PaymentStatusCompleted
		payment.TransactionID = res.TransactionID
		paidAt := res.Timestamp
		payment.PaidAt = &paidAt

		if err := transition(ctx, tx, order, model.OrderStatusCompleted); err != nil {
			return nil, err
		}
	} else {
		payment.Status = model.PaymentStatusFailed

		items := order.Items
		if len(items) == 0 {
			items, err = tx.OrderItems(ctx, order.ID)
			if err != nil {
				return nil, err
			}
		}
		for _, it := range items {
			if err := tx.AdjustStock(ctx, it.ProductID, it.Quantity); err != nil {
				return nil, err
			}
		}

		if err := transition(ctx, tx, order, model.OrderStatusFailed); err != nil {
			return nil, err
		}
	}

	if err := tx.SavePayment(ctx, payment); err != nil {
		return nil, err
	}

	return payment, nil
}
