package reports

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/patternlens-backend/internal/domain"
	"github.com/yungbote/patternlens-backend/internal/platform/logger"
)

type AttributeDefinitionRepo interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.AttributeDefinition, error)
	// ListForCategory returns global definitions plus those scoped to category,
	// ordered by (sort_index, key).
	ListForCategory(ctx context.Context, tx *gorm.DB, category string) ([]*types.AttributeDefinition, error)
	ListByKey(ctx context.Context, tx *gorm.DB, key string) ([]*types.AttributeDefinition, error)
	UpsertByScopeAndKey(ctx context.Context, tx *gorm.DB, row *types.AttributeDefinition) error
	DeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type attributeDefinitionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAttributeDefinitionRepo(db *gorm.DB, baseLog *logger.Logger) AttributeDefinitionRepo {
	return &attributeDefinitionRepo{db: db, log: baseLog.With("repo", "AttributeDefinitionRepo")}
}

func (r *attributeDefinitionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.AttributeDefinition, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var out []*types.AttributeDefinition
	if err := t.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *attributeDefinitionRepo) ListForCategory(ctx context.Context, tx *gorm.DB, category string) ([]*types.AttributeDefinition, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.AttributeDefinition
	err := t.WithContext(ctx).
		Where("scope = ? OR (scope = ? AND category = ?)", types.ScopeGlobal, types.ScopeCategory, strings.TrimSpace(category)).
		Order("sort_index ASC, key ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *attributeDefinitionRepo) ListByKey(ctx context.Context, tx *gorm.DB, key string) ([]*types.AttributeDefinition, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.AttributeDefinition
	if strings.TrimSpace(key) == "" {
		return out, nil
	}
	if err := t.WithContext(ctx).Where("key = ?", key).Order("scope ASC, category ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *attributeDefinitionRepo) UpsertByScopeAndKey(ctx context.Context, tx *gorm.DB, row *types.AttributeDefinition) error {
	t := tx
	if t == nil {
		t = r.db
	}
	if row == nil || row.Key == "" || row.Scope == "" {
		return nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	row.UpdatedAt = time.Now().UTC()
	return t.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "scope"}, {Name: "category"}, {Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"label", "data_type", "allowed_values", "description",
				"searchable", "filterable", "sort_index", "updated_at",
			}),
		}).
		Create(row).Error
}

func (r *attributeDefinitionRepo) DeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	t := tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return t.WithContext(ctx).Where("id = ?", id).Delete(&types.AttributeDefinition{}).Error
}
