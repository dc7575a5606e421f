package users

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avelinabooks/bookshop-backend/pkg/db/models"
)

// GuestRepository persists guest checkout identities.
type GuestRepository struct {
	db *gorm.DB
}

func NewGuestRepository(db *gorm.DB) *GuestRepository {
	return &GuestRepository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *GuestRepository) WithTx(tx *gorm.DB) *GuestRepository {
	return &GuestRepository{db: tx}
}

func (r *GuestRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Guest, error) {
	var guest models.Guest
	if err := r.db.WithContext(ctx).First(&guest, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &guest, nil
}

func (r *GuestRepository) Create(ctx context.Context, guest *models.Guest) (*models.Guest, error) {
	if guest.ID == uuid.Nil {
		guest.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(guest).Error; err != nil {
		return nil, err
	}
	return guest, nil
}

// DeleteStaleWithoutOrders removes guests created before the cutoff that
// have no orders placed after the cutoff. Returns the number of rows deleted.
func (r *GuestRepository) DeleteStaleWithoutOrders(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Exec(
		`DELETE FROM guests
		 WHERE created_at < ?
		   AND NOT EXISTS (
		     SELECT 1 FROM orders o WHERE o.guest_id = guests.id AND o.created_at >= ?
		   )`,
		cutoff, cutoff,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
