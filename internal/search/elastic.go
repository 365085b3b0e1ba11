// Package search содержит клиент поисковой индексации товаров в Elasticsearch.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/AlpayBeydemir/ecommerce-graphql/internal/model"
)

const indexName = "ecommerce_products"

// Elasticsearch индексирует товары каталога во внешнем Elasticsearch.
// Ядро уведомляет индексатор после фиксации изменений и не зависит от
// его доступности.
type Elasticsearch struct {
	client *elasticsearch.Client
}

// NewElasticsearch создаёт клиент индексации по указанному адресу узла.
func NewElasticsearch(address string) (*Elasticsearch, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{address},
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return &Elasticsearch{client: client}, nil
}

type productDocument struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	SKU         string    `json:"sku"`
	Category    string    `json:"category"`
	Brand       string    `json:"brand"`
	Price       float64   `json:"price"`
	Stock       int       `json:"stock_quantity"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IndexProduct записывает документ товара в индекс.
func (e *Elasticsearch) IndexProduct(ctx context.Context, p *model.Product) error {
	doc := productDocument{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		SKU:         p.SKU,
		Category:    p.Category,
		Brand:       p.Brand,
		Price:       float64(p.PriceCents) / 100,
		Stock:       p.Stock,
		IsActive:    p.IsActive,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal product document: %w", err)
	}

	res, err := e.client.Index(indexName, bytes.NewReader(body),
		e.client.Index.WithDocumentID(strconv.FormatInt(p.ID, 10)),
		e.client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("index product: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index product: unexpected status %d", res.StatusCode)
	}
	return nil
}

// DeleteProduct удаляет документ товара из индекса. Отсутствие документа
// ошибкой не считается.
func (e *Elasticsearch) DeleteProduct(ctx context.Context, productID int64) error {
	res, err := e.client.Delete(indexName, strconv.FormatInt(productID, 10),
		e.client.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete product: unexpected status %d", res.StatusCode)
	}
	return nil
}
