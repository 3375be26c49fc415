package services

import (
	"errors"
	"fmt"
	"strings"

	"storefront/internal/models"
	"storefront/internal/repositories"
)

// ErrNegativePrice is returned when a product is saved with a price below zero.
var ErrNegativePrice = errors.New("product price must not be negative")

// ProductService handles business logic related to the catalog.
type ProductService struct {
	repo       repositories.ProductRepository
	categories repositories.CategoryRepository
}

// NewProductService creates a new ProductService. categories may be nil when
// the caller never touches the category tree.
func NewProductService(repo repositories.ProductRepository, categories repositories.CategoryRepository) *ProductService {
	return &ProductService{
		repo:       repo,
		categories: categories,
	}
}

// GetAllProducts retrieves all products.
func (s *ProductService) GetAllProducts() ([]models.Product, error) {
	return s.repo.GetAll()
}

// GetProductByID retrieves a single product by its ID.
func (s *ProductService) GetProductByID(id string) (*models.Product, error) {
	return s.repo.GetByID(id)
}

// GetProductsByCategory lists the products of one category.
func (s *ProductService) GetProductsByCategory(categoryID string) ([]models.Product, error) {
	return s.repo.GetByCategory(categoryID)
}

// GetCategoryTree returns the root categories with their subcategories.
func (s *ProductService) GetCategoryTree() ([]models.Category, error) {
	if s.categories == nil {
		return []models.Category{}, nil
	}
	return s.categories.GetTree()
}

// CreateCategory stores a category, deriving its slug from the name.
func (s *ProductService) CreateCategory(category *models.Category) error {
	if s.categories == nil {
		return fmt.Errorf("category repository not configured")
	}
	if category.Slug == "" {
		category.Slug = Slugify(category.Name)
	}
	return s.categories.Create(category)
}

// CreateProduct creates a new product.
func (s *ProductService) CreateProduct(product *models.Product) error {
	if product.Slug == "" {
		product.Slug = Slugify(product.Name)
	}
	if product.Price.IsNegative() {
		return ErrNegativePrice
	}
	return s.repo.Create(product)
}

// UpdateProduct replaces the fields of an existing product. It fails with
// repositories.ErrNotFound when no product has product.ID.
func (s *ProductService) UpdateProduct(product *models.Product) error {
	if product.Price.IsNegative() {
		return ErrNegativePrice
	}
	existing, err := s.repo.GetByID(product.ID)
	if err != nil {
		return err
	}
	if product.Slug == "" {
		product.Slug = Slugify(product.Name)
	}
	product.CreatedAt = existing.CreatedAt
	return s.repo.Update(product)
}

// DeleteProduct deletes a product by its ID.
func (s *ProductService) DeleteProduct(id string) error {
	return s.repo.Delete(id)
}

// Slugify lowercases name and joins its words with dashes.
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
