package search

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"example.com/backstage/services/fulfillment/config"
	"example.com/backstage/services/fulfillment/internal/models"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ElasticClient provides integration with Elasticsearch
type ElasticClient struct {
	client *elasticsearch.Client
	config config.ElasticConfig
}

// NewElasticClient creates a new Elasticsearch client
func NewElasticClient(cfg config.ElasticConfig) (*ElasticClient, error) {
	esConfig := elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	}

	client, err := elasticsearch.NewClient(esConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Elasticsearch client")
	}

	return &ElasticClient{
		client: client,
		config: cfg,
	}, nil
}

// IndexOrderConfirmation indexes a confirmed order together with the raw
// material usage it produced. Called after the confirmation transaction has
// committed; indexing is an audit concern and never blocks the workflow.
func (c *ElasticClient) IndexOrderConfirmation(ctx context.Context, order *models.Order, usages []models.RawMaterialUsage) error {
	usageDocs := make([]map[string]interface{}, 0, len(usages))
	for _, usage := range usages {
		usageDocs = append(usageDocs, map[string]interface{}{
			"raw_material_id": usage.RawMaterialID.String(),
			"quantity_used":   usage.QuantityUsed,
		})
	}

	doc := map[string]interface{}{
		"id":            order.ID.String(),
		"customer_name": order.CustomerName,
		"status":        order.Status,
		"item_count":    len(order.Items),
		"usage":         usageDocs,
		"confirmed_at":  time.Now().UTC().Format(time.RFC3339),
	}

	return c.index(ctx, c.config.Index, order.ID.String(), doc)
}

// IndexDeliveryOrder indexes a delivery order for audit search
func (c *ElasticClient) IndexDeliveryOrder(ctx context.Context, deliveryOrder *models.DeliveryOrder) error {
	itemDocs := make([]map[string]interface{}, 0, len(deliveryOrder.Items))
	for _, item := range deliveryOrder.Items {
		itemDocs = append(itemDocs, map[string]interface{}{
			"product_id":   item.ProductID.String(),
			"product_name": item.ProductName,
			"quantity":     item.Quantity,
			"unit":         item.Unit,
		})
	}

	doc := map[string]interface{}{
		"id":            deliveryOrder.ID.String(),
		"do_code":       deliveryOrder.DOCode,
		"work_order_id": deliveryOrder.WorkOrderID.String(),
		"order_id":      deliveryOrder.OrderID.String(),
		"status":        deliveryOrder.Status,
		"items":         itemDocs,
		"created_at":    deliveryOrder.CreatedAt.UTC().Format(time.RFC3339),
	}

	return c.index(ctx, "delivery-orders", deliveryOrder.ID.String(), doc)
}

func (c *ElasticClient) index(ctx context.Context, index, documentID string, doc map[string]interface{}) error {
	docJson, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "failed to marshal document")
	}

	indexName := config.FormatIndex(c.config, index)
	req := esapi.IndexRequest{
		Index:      indexName,
		DocumentID: documentID,
		Body:       bytes.NewReader(docJson),
		Refresh:    "true",
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return errors.Wrap(err, "failed to execute Elasticsearch index request")
	}
	defer res.Body.Close()

	if res.IsError() {
		var e map[string]interface{}
		if err := json.NewDecoder(res.Body).Decode(&e); err != nil {
			return errors.Wrap(err, "failed to parse Elasticsearch error response")
		}
		return errors.Errorf("Elasticsearch index error: %v", e)
	}

	log.Debug().Str("index", indexName).Str("document_id", documentID).Msg("document indexed")
	return nil
}

// SearchOrders searches indexed order confirmations with the given criteria
func (c *ElasticClient) SearchOrders(ctx context.Context, query map[string]interface{}) ([]map[string]interface{}, error) {
	queryJSON, err := json.Marshal(query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal search query")
	}

	indexName := config.FormatIndex(c.config, c.config.Index)
	req := esapi.SearchRequest{
		Index: []string{indexName},
		Body:  bytes.NewReader(queryJSON),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute Elasticsearch search request")
	}
	defer res.Body.Close()

	if res.IsError() {
		var e map[string]interface{}
		if err := json.NewDecoder(res.Body).Decode(&e); err != nil {
			return nil, errors.Wrap(err, "failed to parse Elasticsearch error response")
		}
		return nil, errors.Errorf("Elasticsearch search error: %v", e)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(err, "failed to parse Elasticsearch search response")
	}

	hits, ok := result["hits"].(map[string]interface{})
	if !ok {
		return nil, errors.New("unexpected search result format")
	}

	hitsArray, ok := hits["hits"].([]interface{})
	if !ok {
		return nil, errors.New("unexpected hits format")
	}

	var docs []map[string]interface{}
	for _, hit := range hitsArray {
		hitMap, ok := hit.(map[string]interface{})
		if !ok {
			continue
		}

		source, ok := hitMap["_source"].(map[string]interface{})
		if !ok {
			continue
		}

		docs = append(docs, source)
	}

	return docs, nil
}
