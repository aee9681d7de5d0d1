package reports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/patternlens-backend/internal/domain"
	"github.com/yungbote/patternlens-backend/internal/platform/logger"
)

type SearchEventRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.SearchEvent) error
	ListSince(ctx context.Context, tx *gorm.DB, since time.Time, limit int) ([]*types.SearchEvent, error)
}

type searchEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSearchEventRepo(db *gorm.DB, baseLog *logger.Logger) SearchEventRepo {
	return &searchEventRepo{db: db, log: baseLog.With("repo", "SearchEventRepo")}
}

func (r *searchEventRepo) Create(ctx context.Context, tx *gorm.DB, row *types.SearchEvent) error {
	t := tx
	if t == nil {
		t = r.db
	}
	if row == nil {
		return nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	return t.WithContext(ctx).Create(row).Error
}

func (r *searchEventRepo) ListSince(ctx context.Context, tx *gorm.DB, since time.Time, limit int) ([]*types.SearchEvent, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.SearchEvent
	if limit <= 0 {
		limit = 100
	}
	if err := t.WithContext(ctx).Where("created_at >= ?", since).Order("created_at DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
