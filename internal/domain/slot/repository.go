package slot

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Repository is the durable record of slots.
type Repository interface {
	Create(ctx context.Context, s *Slot) error
	FindReserved(ctx context.Context, token, name string, createdAfter time.Time) (*Slot, error)
	FindFulfilled(ctx context.Context, token, name string) (*Slot, error)
	// Fulfill marks a reserved slot as uploaded and runs commit inside the same
	// transaction. It returns ErrSlotNotFound if the slot is no longer reserved.
	Fulfill(ctx context.Context, id, file, contentType string, at time.Time, commit func() error) error

	TotalSize(ctx context.Context, jid string) (int64, error)
	SizeSince(ctx context.Context, jid string, since time.Time) (int64, error)
	CountSince(ctx context.Context, jid string, since time.Time) (int64, error)

	DeleteReservedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	ListCreatedBefore(ctx context.Context, cutoff time.Time) ([]*Slot, error)
	Delete(ctx context.Context, id string) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, s *Slot) error {
	err := r.db.WithContext(ctx).Create(s).Error
	if isUniqueViolation(err) {
		return ErrDuplicateToken
	}
	return err
}

func (r *repository) FindReserved(ctx context.Context, token, name string, createdAfter time.Time) (*Slot, error) {
	var s Slot
	err := r.db.WithContext(ctx).
		Where("token = ? AND name = ? AND file = '' AND uploaded_at IS NULL AND created_at > ?", token, name, createdAfter).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSlotNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repository) FindFulfilled(ctx context.Context, token, name string) (*Slot, error) {
	var s Slot
	err := r.db.WithContext(ctx).
		Where("token = ? AND name = ? AND file <> '' AND uploaded_at IS NOT NULL", token, name).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSlotNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repository) Fulfill(ctx context.Context, id, file, contentType string, at time.Time, commit func() error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Slot{}).
			Where("id = ? AND file = '' AND uploaded_at IS NULL", id).
			Updates(map[string]interface{}{
				"file":        file,
				"type":        contentType,
				"uploaded_at": at,
				"updated_at":  at,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrSlotNotFound
		}
		return commit()
	})
}

func (r *repository) TotalSize(ctx context.Context, jid string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&Slot{}).
		Where("jid = ?", jid).
		Select("COALESCE(SUM(size), 0)").
		Scan(&total).Error
	return total, err
}

func (r *repository) SizeSince(ctx context.Context, jid string, since time.Time) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&Slot{}).
		Where("jid = ? AND created_at >= ?", jid, since).
		Select("COALESCE(SUM(size), 0)").
		Scan(&total).Error
	return total, err
}

func (r *repository) CountSince(ctx context.Context, jid string, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Slot{}).
		Where("jid = ? AND created_at >= ?", jid, since).
		Count(&count).Error
	return count, err
}

func (r *repository) DeleteReservedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("file = '' AND uploaded_at IS NULL AND created_at < ?", cutoff).
		Delete(&Slot{})
	return res.RowsAffected, res.Error
}

func (r *repository) ListCreatedBefore(ctx context.Context, cutoff time.Time) ([]*Slot, error) {
	var slots []*Slot
	err := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Order("created_at ASC").
		Find(&slots).Error
	return slots, err
}

func (r *repository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&Slot{}).Error
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}
