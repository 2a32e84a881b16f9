package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"anoa.com/unimarket/internal/entity"
	"anoa.com/unimarket/pkg/logger"
	"anoa.com/unimarket/pkg/sanitizer"
	"github.com/google/uuid"
	"github.com/meilisearch/meilisearch-go"
)

const productsIndex = "products"

// ProductQuery is what the catalog asks the index for. Status is always "available".
type ProductQuery struct {
	Text      string
	Category  string
	Condition string
	MinPrice  *float64
	MaxPrice  *float64
	SortBy    string
	Offset    int
	Limit     int
}

type Service interface {
	IndexProduct(ctx context.Context, product *entity.Product) error
	IndexProducts(ctx context.Context, products []entity.Product) error
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	SearchProductIDs(ctx context.Context, q ProductQuery) ([]uuid.UUID, int64, error)
}

type meiliSearchService struct {
	client meilisearch.ServiceManager
}

func NewMeiliSearchService(client meilisearch.ServiceManager) Service {
	s := &meiliSearchService{client: client}
	s.initIndexes()
	return s
}

func (s *meiliSearchService) initIndexes() {
	log := logger.L().WithField("index", productsIndex)

	filterableAttrs := []string{"status", "category_slug", "condition", "price", "seller_id"}
	filterableInterface := make([]any, len(filterableAttrs))
	for i, v := range filterableAttrs {
		filterableInterface[i] = v
	}
	if _, err := s.client.Index(productsIndex).UpdateFilterableAttributes(&filterableInterface); err != nil {
		log.WithError(err).Warn("failed to update filterable attributes")
	}

	sortableAttrs := []string{"created_at", "price", "views"}
	if _, err := s.client.Index(productsIndex).UpdateSortableAttributes(&sortableAttrs); err != nil {
		log.WithError(err).Warn("failed to update sortable attributes")
	}

	searchableAttrs := []string{"name", "tags", "description", "category_name"}
	if _, err := s.client.Index(productsIndex).UpdateSearchableAttributes(&searchableAttrs); err != nil {
		log.WithError(err).Warn("failed to update searchable attributes")
	}

	log.Info("meilisearch index initialized")
}

type productDoc struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Tags         []string `json:"tags"`
	CategorySlug string   `json:"category_slug"`
	CategoryName string   `json:"category_name"`
	Condition    string   `json:"condition"`
	Status       string   `json:"status"`
	Price        float64  `json:"price"`
	Views        int      `json:"views"`
	SellerID     string   `json:"seller_id"`
	SellerHandle string   `json:"seller_handle"`
	CreatedAt    int64    `json:"created_at"`
}

func newProductDoc(p *entity.Product) productDoc {
	doc := productDoc{
		ID:          p.ID.String(),
		Name:        p.Name,
		Description: sanitizer.PlainText(p.Description),
		Tags:        []string(p.Tags),
		Condition:   p.Condition,
		Status:      p.Status,
		Price:       p.Price,
		Views:       p.Views,
		SellerID:    p.SellerID.String(),
		CreatedAt:   p.CreatedAt.Unix(),
	}
	if doc.Tags == nil {
		doc.Tags = []string{}
	}
	if p.Category != nil {
		doc.CategorySlug = p.Category.Slug
		doc.CategoryName = p.Category.Name
	}
	if p.Seller != nil {
		doc.SellerHandle = p.Seller.Handle
	}
	return doc
}

func (s *meiliSearchService) IndexProduct(ctx context.Context, product *entity.Product) error {
	return s.IndexProducts(ctx, []entity.Product{*product})
}

func (s *meiliSearchService) IndexProducts(ctx context.Context, products []entity.Product) error {
	if len(products) == 0 {
		return nil
	}

	docs := make([]productDoc, 0, len(products))
	for i := range products {
		docs = append(docs, newProductDoc(&products[i]))
	}

	task, err := s.client.Index(productsIndex).AddDocuments(docs, strPtr("id"))
	if err != nil {
		return err
	}
	logger.FromContext(ctx).WithField("task_uid", task.TaskUID).Debugf("indexed %d products", len(docs))
	return nil
}

func (s *meiliSearchService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	_, err := s.client.Index(productsIndex).DeleteDocument(id.String())
	return err
}

type searchHits struct {
	Hits []struct {
		ID string `json:"id"`
	} `json:"hits"`
	EstimatedTotalHits int64 `json:"estimatedTotalHits"`
}

// SearchProductIDs returns matching product ids in ranking order together with the estimated total.
func (s *meiliSearchService) SearchProductIDs(ctx context.Context, q ProductQuery) ([]uuid.UUID, int64, error) {
	req := &meilisearch.SearchRequest{
		Filter:               BuildFilter(q),
		Offset:               int64(q.Offset),
		Limit:                int64(q.Limit),
		AttributesToRetrieve: []string{"id"},
	}
	if sort := sortFor(q.SortBy); sort != "" {
		req.Sort = []string{sort}
	}

	raw, err := s.client.Index(productsIndex).SearchRaw(q.Text, req)
	if err != nil {
		return nil, 0, err
	}

	var res searchHits
	if err := json.Unmarshal(*raw, &res); err != nil {
		return nil, 0, fmt.Errorf("decode search response: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(res.Hits))
	for _, hit := range res.Hits {
		id, err := uuid.Parse(hit.ID)
		if err != nil {
			logger.FromContext(ctx).WithField("id", hit.ID).Warn("skipping search hit with invalid id")
			continue
		}
		ids = append(ids, id)
	}
	return ids, res.EstimatedTotalHits, nil
}

// BuildFilter renders the Meilisearch filter expression for q.
func BuildFilter(q ProductQuery) string {
	parts := []string{fmt.Sprintf("status = %q", entity.ProductStatusAvailable)}
	if q.Category != "" {
		parts = append(parts, fmt.Sprintf("category_slug = %q", q.Category))
	}
	if q.Condition != "" {
		parts = append(parts, fmt.Sprintf("condition = %q", q.Condition))
	}
	if q.MinPrice != nil {
		parts = append(parts, fmt.Sprintf("price >= %.2f", *q.MinPrice))
	}
	if q.MaxPrice != nil {
		parts = append(parts, fmt.Sprintf("price <= %.2f", *q.MaxPrice))
	}
	return strings.Join(parts, " AND ")
}

func sortFor(sortBy string) string {
	switch sortBy {
	case "newest":
		return "created_at:desc"
	case "price_asc":
		return "price:asc"
	case "price_desc":
		return "price:desc"
	case "popular":
		return "views:desc"
	default:
		return ""
	}
}

func strPtr(s string) *string {
	return &s
}
