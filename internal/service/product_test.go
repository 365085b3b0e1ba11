package service

import (
	"context"
	"testing"
	"time"

	"github.com/AlpayBeydemir/ecommerce-graphql/internal/model"
)

// chanIndexer фиксирует уведомления индексации через каналы.
type chanIndexer struct {
	indexed   chan int64
	deindexed chan int64
}

func newChanIndexer() *chanIndexer {
	return &chanIndexer{
		indexed:   make(chan int64, 1),
		deindexed: make(chan int64, 1),
	}
}

func (i *chanIndexer) IndexProduct(ctx context.Context, p *model.Product) error {
	i.indexed <- p.ID
	return nil
}

func (i *chanIndexer) DeleteProduct(ctx context.Context, productID int64) error {
	i.deindexed <- productID
	return nil
}

func waitForID(t *testing.T, ch chan int64) int64 {
	t.Helper()
	select {
	case id := <-ch:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("notification not delivered")
		return 0
	}
}

func newIndexingService(store *fakeStore, idx Indexer) *Service {
	svc := newTestService(store, true)
	svc.indexer = idx
	return svc
}

func TestCreateProduct_NotifiesIndexer(t *testing.T) {
	store := newFakeStore()
	idx := newChanIndexer()
	svc := newIndexingService(store, idx)

	p := &model.Product{Name: "Kettle", SKU: "K-1", PriceCents: 10000, Stock: 5, IsActive: true}
	if err := svc.CreateProduct(context.Background(), p); err != nil {
		t.Fatalf("CreateProduct error: %v", err)
	}

	if got := waitForID(t, idx.indexed); got != p.ID {
		t.Fatalf("indexed product = %d, want %d", got, p.ID)
	}
}

func TestCreateProduct_InactiveSkipsIndexer(t *testing.T) {
	store := newFakeStore()
	idx := newChanIndexer()
	svc := newIndexingService(store, idx)

	p := &model.Product{Name: "Kettle", SKU: "K-1", PriceCents: 10000, Stock: 5, IsActive: false}
	if err := svc.CreateProduct(context.Background(), p); err != nil {
		t.Fatalf("CreateProduct error: %v", err)
	}

	select {
	case id := <-idx.indexed:
		t.Fatalf("inactive product %d must not be indexed", id)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestUpdateProduct_DeactivationRemovesFromIndex(t *testing.T) {
	store := newFakeStore()
	idx := newChanIndexer()
	svc := newIndexingService(store, idx)

	p := store.addProduct("Kettle", 10000, 5, true)

	upd := *p
	upd.IsActive = false
	if err := svc.UpdateProduct(context.Background(), &upd); err != nil {
		t.Fatalf("UpdateProduct error: %v", err)
	}

	if got := waitForID(t, idx.deindexed); got != p.ID {
		t.Fatalf("deindexed product = %d, want %d", got, p.ID)
	}
}

func TestDeleteProduct_RemovesFromIndex(t *testing.T) {
	store := newFakeStore()
	idx := newChanIndexer()
	svc := newIndexingService(store, idx)

	p := store.addProduct("Kettle", 10000, 5, true)

	if err := svc.DeleteProduct(context.Background(), p.ID); err != nil {
		t.Fatalf("DeleteProduct error: %v", err)
	}

	if got := waitForID(t, idx.deindexed); got != p.ID {
		t.Fatalf("deindexed product = %d, want %d", got, p.ID)
	}
}

func TestProductOperations_NilIndexerIsNoop(t *testing.T) {
	store := newFakeStore()
	svc := newIndexingService(store, nil)

	p := &model.Product{Name: "Kettle", SKU: "K-1", PriceCents: 10000, Stock: 5, IsActive: true}
	if err := svc.CreateProduct(context.Background(), p); err != nil {
		t.Fatalf("CreateProduct error: %v", err)
	}
	if err := svc.DeleteProduct(context.Background(), p.ID); err != nil {
		t.Fatalf("DeleteProduct error: %v", err)
	}
}
