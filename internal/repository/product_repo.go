package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/mitcstore/mitc-api/internal/models"
)

// Product sort keys accepted by List.
const (
	ProductSortPriceAsc  = "price-asc"
	ProductSortPriceDesc = "price-desc"
	ProductSortViews     = "views"
	ProductSortNewest    = "newest"
)

// ProductFilter narrows catalogue queries. An empty Status matches every state.
type ProductFilter struct {
	Status string
	Brand  string
	SortBy string
	Limit  int
}

// ProductRepository manages catalogue persistence.
type ProductRepository interface {
	List(ctx context.Context, filter ProductFilter) ([]models.Product, error)
	Search(ctx context.Context, term, status string, limit int) ([]models.Product, error)
	GetByID(ctx context.Context, id uint) (models.Product, error)
	ListByIDs(ctx context.Context, ids []uint) ([]models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Save(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id uint) error
	IncrementViews(ctx context.Context, id uint) error
}

type productRepository struct {
	db *gorm.DB
}

// NewProductRepository constructs a product repository.
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) List(ctx context.Context, filter ProductFilter) ([]models.Product, error) {
	query := r.db.WithContext(ctx).Model(&models.Product{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if brand := strings.TrimSpace(filter.Brand); brand != "" {
		query = query.Where("LOWER(brand) = ?", strings.ToLower(brand))
	}

	switch filter.SortBy {
	case ProductSortPriceAsc:
		query = query.Order("price_low ASC")
	case ProductSortPriceDesc:
		query = query.Order("price_low DESC")
	case ProductSortViews:
		query = query.Order("views DESC")
	default:
		query = query.Order("created_at DESC")
	}
	query = query.Order("id DESC")

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var products []models.Product
	err := query.Find(&products).Error
	return products, err
}

func (r *productRepository) Search(ctx context.Context, term, status string, limit int) ([]models.Product, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(term)) + "%"
	query := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("LOWER(title) LIKE ? OR LOWER(brand) LIKE ? OR spec_model LIKE ?", pattern, pattern, pattern)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var products []models.Product
	err := query.Order("views DESC").Order("id DESC").Find(&products).Error
	return products, err
}

func (r *productRepository) GetByID(ctx context.Context, id uint) (models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).First(&product, id).Error
	return product, err
}

func (r *productRepository) ListByIDs(ctx context.Context, ids []uint) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}
	var products []models.Product
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&products).Error
	return products, err
}

func (r *productRepository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *productRepository) Save(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Save(product).Error
}

func (r *productRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Product{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// IncrementViews bumps the counter in place so concurrent views are not lost.
func (r *productRepository) IncrementViews(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + ?", 1))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
