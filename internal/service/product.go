package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/AlpayBeydemir/ecommerce-graphql/internal/model"
)

const indexTimeout = 5 * time.Second

// CreateProduct сохраняет новый товар и уведомляет поисковый индекс.
func (s *Service) CreateProduct(ctx context.Context, p *model.Product) error {
	if err := s.store.CreateProduct(ctx, p); err != nil {
		return err
	}
	if p.IsActive {
		s.notifyIndex(*p)
	}
	return nil
}

// UpdateProduct обновляет товар; неактивный товар убирается из индекса.
func (s *Service) UpdateProduct(ctx context.Context, p *model.Product) error {
	if err := s.store.UpdateProduct(ctx, p); err != nil {
		return err
	}
	if p.IsActive {
		s.notifyIndex(*p)
	} else {
		s.notifyDeindex(p.ID)
	}
	return nil
}

// DeleteProduct удаляет товар из каталога и из поискового индекса.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.notifyDeindex(id)
	return nil
}

// notifyIndex отправляет товар в поисковый индекс после фиксации изменений.
// Уведомление асинхронное: запрос пользователя не ждёт индексацию и не
// зависит от её исхода.
func (s *Service) notifyIndex(p model.Product) {
	if s.indexer == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), indexTimeout)
		defer cancel()

		if err := s.indexer.IndexProduct(ctx, &p); err != nil {
			s.logger.Error("index product", zap.Error(err), zap.Int64("productID", p.ID))
		}
	}()
}

func (s *Service) notifyDeindex(productID int64) {
	if s.indexer == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), indexTimeout)
		defer cancel()

		if err := s.indexer.DeleteProduct(ctx, productID); err != nil {
			s.logger.Error("deindex product", zap.Error(err), zap.Int64("productID", productID))
		}
	}()
}

// GetProduct возвращает товар каталога.
func (s *Service) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	var p *model.Product
	err := retryTransient(ctx, func() (err error) {
		p, err = s.store.ProductByID(ctx, id)
		return err
	})
	return p, err
}

// ListProducts возвращает товары каталога.
func (s *Service) ListProducts(ctx context.Context, activeOnly bool) ([]model.Product, error) {
	var products []model.Product
	err := retryTransient(ctx, func() (err error) {
		products, err = s.store.ListProducts(ctx, activeOnly)
		return err
	})
	return products, err
}

// OrdersByUser возвращает заказы пользователя.
func (s *Service) OrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	var orders []model.Order
	err := retryTransient(ctx, func() (err error) {
		orders, err = s.store.OrdersByUser(ctx, userID)
		return err
	})
	return orders, err
}

// OrderByNumber возвращает заказ пользователя по номеру.
func (s *Service) OrderByNumber(ctx context.Context, userID int64, number string) (*model.Order, error) {
	var order *model.Order
	err := retryTransient(ctx, func() (err error) {
		order, err = s.store.OrderByNumber(ctx, userID, number)
		return err
	})
	return order, err
}

// CreateAddress сохраняет новый адрес пользователя.
func (s *Service) CreateAddress(ctx context.Context, a *model.Address) error {
	return s.store.CreateAddress(ctx, a)
}

// AddressesByUser возвращает адреса пользователя.
func (s *Service) AddressesByUser(ctx context.Context, userID int64) ([]model.Address, error) {
	var addrs []model.Address
	err := retryTransient(ctx, func() (err error) {
		addrs, err = s.store.AddressesByUser(ctx, userID)
		return err
	})
	return addrs, err
}
