package reports

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/patternlens-backend/internal/domain"
	"github.com/yungbote/patternlens-backend/internal/platform/logger"
)

type CategoryRepo interface {
	GetByKey(ctx context.Context, tx *gorm.DB, key string) (*types.Category, error)
	List(ctx context.Context, tx *gorm.DB) ([]*types.Category, error)
	Upsert(ctx context.Context, tx *gorm.DB, row *types.Category) error
}

type categoryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCategoryRepo(db *gorm.DB, baseLog *logger.Logger) CategoryRepo {
	return &categoryRepo{db: db, log: baseLog.With("repo", "CategoryRepo")}
}

func (r *categoryRepo) GetByKey(ctx context.Context, tx *gorm.DB, key string) (*types.Category, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	var out []*types.Category
	if err := t.WithContext(ctx).Where("key = ?", key).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *categoryRepo) List(ctx context.Context, tx *gorm.DB) ([]*types.Category, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.Category
	if err := t.WithContext(ctx).Order("sort_index ASC, key ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *categoryRepo) Upsert(ctx context.Context, tx *gorm.DB, row *types.Category) error {
	t := tx
	if t == nil {
		t = r.db
	}
	if row == nil || strings.TrimSpace(row.Key) == "" {
		return nil
	}
	row.UpdatedAt = time.Now().UTC()
	return t.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "sort_index", "updated_at"}),
		}).
		Create(row).Error
}
