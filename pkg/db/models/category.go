package models

import (
	"time"

	"github.com/google/uuid"
)

type Category struct {
	ID            uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name          string     `gorm:"column:name;not null;uniqueIndex"`
	Description   *string    `gorm:"column:description"`
	Books         []Book     `gorm:"many2many:book_categories"`
	Subcategories []Category `gorm:"many2many:category_subcategories;joinForeignKey:ParentID;joinReferences:ChildID"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
