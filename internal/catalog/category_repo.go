package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avelinabooks/bookshop-backend/pkg/db/models"
)

// CategoryRepository persists categories and their subcategory links.
type CategoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *CategoryRepository) WithTx(tx *gorm.DB) *CategoryRepository {
	return &CategoryRepository{db: tx}
}

func (r *CategoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	var category models.Category
	if err := r.db.WithContext(ctx).Preload("Subcategories").First(&category, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *CategoryRepository) FindByName(ctx context.Context, name string) (*models.Category, error) {
	var category models.Category
	if err := r.db.WithContext(ctx).First(&category, "name = ?", name).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *CategoryRepository) Create(ctx context.Context, category *models.Category) (*models.Category, error) {
	if category.ID == uuid.Nil {
		category.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(category).Error; err != nil {
		return nil, err
	}
	return category, nil
}

func (r *CategoryRepository) Update(ctx context.Context, category *models.Category) (*models.Category, error) {
	if err := r.db.WithContext(ctx).Save(category).Error; err != nil {
		return nil, err
	}
	return category, nil
}

func (r *CategoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Category{}).Error
}

func (r *CategoryRepository) List(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := r.db.WithContext(ctx).Preload("Subcategories").Order("name ASC").Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

// LinkSubcategory attaches child as a subcategory of parent.
func (r *CategoryRepository) LinkSubcategory(ctx context.Context, parentID, childID uuid.UUID) error {
	parent := models.Category{ID: parentID}
	return r.db.WithContext(ctx).Model(&parent).
		Association("Subcategories").
		Append(&models.Category{ID: childID})
}

// UnlinkSubcategory detaches child from parent.
func (r *CategoryRepository) UnlinkSubcategory(ctx context.Context, parentID, childID uuid.UUID) error {
	parent := models.Category{ID: parentID}
	return r.db.WithContext(ctx).Model(&parent).
		Association("Subcategories").
		Delete(&models.Category{ID: childID})
}

// AssignBookCategories replaces the book's category set.
func (r *CategoryRepository) AssignBookCategories(ctx context.Context, book *models.Book, categoryIDs []uuid.UUID) error {
	categories := make([]models.Category, 0, len(categoryIDs))
	for _, id := range categoryIDs {
		categories = append(categories, models.Category{ID: id})
	}
	return r.db.WithContext(ctx).Model(book).
		Association("Categories").
		Replace(categories)
}
