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

// KeyValue identifies an attribute value; Value is compared case-insensitively.
type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (kv KeyValue) Norm() KeyValue {
	return KeyValue{Key: strings.TrimSpace(kv.Key), Value: strings.ToLower(strings.TrimSpace(kv.Value))}
}

// ReportPoint is the geo/time footprint of a report carrying some attribute value.
type ReportPoint struct {
	ReportID   uuid.UUID `gorm:"column:report_id"`
	Latitude   *float64  `gorm:"column:latitude"`
	Longitude  *float64  `gorm:"column:longitude"`
	OccurredAt time.Time `gorm:"column:occurred_at"`
}

// ValueCount is a grouped count over lower(value); Value is one representative spelling.
type ValueCount struct {
	Key   string `gorm:"column:attribute_key"`
	Value string `gorm:"column:value"`
	Count int64  `gorm:"column:count"`
}

type ExtractedAttributeRepo interface {
	// Upsert writes rows keyed by (report_id, attribute_key). AI rows never replace a
	// user-confirmed value; user-confirmed rows always win.
	Upsert(ctx context.Context, tx *gorm.DB, rows []*types.ExtractedAttribute) error

	ListByReportID(ctx context.Context, tx *gorm.DB, reportID uuid.UUID) ([]*types.ExtractedAttribute, error)
	ListByReportIDs(ctx context.Context, tx *gorm.DB, reportIDs []uuid.UUID) ([]*types.ExtractedAttribute, error)
	ListMatching(ctx context.Context, tx *gorm.DB, kv KeyValue) ([]*types.ExtractedAttribute, error)

	CountAttributedReports(ctx context.Context, tx *gorm.DB) (int64, error)
	CountKeyValues(ctx context.Context, tx *gorm.DB, pairs []KeyValue) ([]ValueCount, error)
	ValueCounts(ctx context.Context, tx *gorm.DB, key string) ([]ValueCount, error)
	// ReportPointsWith only returns public reports; the ids reach anonymous callers.
	ReportPointsWith(ctx context.Context, tx *gorm.DB, kv KeyValue) ([]ReportPoint, error)

	// CountByKey counts rows for key, restricted to reports of category when non-empty.
	CountByKey(ctx context.Context, tx *gorm.DB, key string, category string) (int64, error)
	DeleteByKey(ctx context.Context, tx *gorm.DB, key string, category string) error
}

type extractedAttributeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewExtractedAttributeRepo(db *gorm.DB, baseLog *logger.Logger) ExtractedAttributeRepo {
	return &extractedAttributeRepo{db: db, log: baseLog.With("repo", "ExtractedAttributeRepo")}
}

func (r *extractedAttributeRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

var upsertColumns = []string{"value", "confidence", "provenance", "evidence", "created_by", "updated_at"}

func (r *extractedAttributeRepo) Upsert(ctx context.Context, tx *gorm.DB, rows []*types.ExtractedAttribute) error {
	if len(rows) == 0 {
		return nil
	}
	now := time.Now().UTC()
	var ai, confirmed []*types.ExtractedAttribute
	for _, row := range rows {
		if row == nil || row.ReportID == uuid.Nil || row.AttributeKey == "" {
			continue
		}
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
		row.UpdatedAt = now
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
		if row.Provenance == types.ProvenanceUserConfirmed {
			confirmed = append(confirmed, row)
		} else {
			row.Provenance = types.ProvenanceAIExtracted
			ai = append(ai, row)
		}
	}
	t := r.conn(tx).WithContext(ctx)
	if len(ai) > 0 {
		err := t.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "report_id"}, {Name: "attribute_key"}},
			DoUpdates: clause.AssignmentColumns(upsertColumns),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "extracted_attribute.provenance <> ?", Vars: []interface{}{types.ProvenanceUserConfirmed}},
			}},
		}).Create(&ai).Error
		if err != nil {
			return err
		}
	}
	if len(confirmed) > 0 {
		err := t.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "report_id"}, {Name: "attribute_key"}},
			DoUpdates: clause.AssignmentColumns(upsertColumns),
		}).Create(&confirmed).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *extractedAttributeRepo) ListByReportID(ctx context.Context, tx *gorm.DB, reportID uuid.UUID) ([]*types.ExtractedAttribute, error) {
	return r.ListByReportIDs(ctx, tx, []uuid.UUID{reportID})
}

func (r *extractedAttributeRepo) ListByReportIDs(ctx context.Context, tx *gorm.DB, reportIDs []uuid.UUID) ([]*types.ExtractedAttribute, error) {
	var out []*types.ExtractedAttribute
	if len(reportIDs) == 0 {
		return out, nil
	}
	err := r.conn(tx).WithContext(ctx).
		Where("report_id IN ?", reportIDs).
		Order("report_id ASC, attribute_key ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *extractedAttributeRepo) ListMatching(ctx context.Context, tx *gorm.DB, kv KeyValue) ([]*types.ExtractedAttribute, error) {
	var out []*types.ExtractedAttribute
	kv = kv.Norm()
	if kv.Key == "" || kv.Value == "" {
		return out, nil
	}
	err := r.conn(tx).WithContext(ctx).
		Where("attribute_key = ? AND lower(value) = ?", kv.Key, kv.Value).
		Order("report_id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *extractedAttributeRepo) CountAttributedReports(ctx context.Context, tx *gorm.DB) (int64, error) {
	var n int64
	err := r.conn(tx).WithContext(ctx).
		Model(&types.ExtractedAttribute{}).
		Distinct("report_id").
		Count(&n).Error
	return n, err
}

func (r *extractedAttributeRepo) CountKeyValues(ctx context.Context, tx *gorm.DB, pairs []KeyValue) ([]ValueCount, error) {
	var out []ValueCount
	if len(pairs) == 0 {
		return out, nil
	}
	in := make([][]interface{}, 0, len(pairs))
	for _, p := range pairs {
		p = p.Norm()
		if p.Key == "" || p.Value == "" {
			continue
		}
		in = append(in, []interface{}{p.Key, p.Value})
	}
	if len(in) == 0 {
		return out, nil
	}
	err := r.conn(tx).WithContext(ctx).
		Model(&types.ExtractedAttribute{}).
		Select("attribute_key, lower(value) AS value, COUNT(DISTINCT report_id) AS count").
		Where("(attribute_key, lower(value)) IN ?", in).
		Group("attribute_key, lower(value)").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *extractedAttributeRepo) ValueCounts(ctx context.Context, tx *gorm.DB, key string) ([]ValueCount, error) {
	var out []ValueCount
	if strings.TrimSpace(key) == "" {
		return out, nil
	}
	err := r.conn(tx).WithContext(ctx).
		Model(&types.ExtractedAttribute{}).
		Select("attribute_key, min(value) AS value, COUNT(*) AS count").
		Where("attribute_key = ?", strings.TrimSpace(key)).
		Group("attribute_key, lower(value)").
		Order("count DESC, value ASC").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *extractedAttributeRepo) ReportPointsWith(ctx context.Context, tx *gorm.DB, kv KeyValue) ([]ReportPoint, error) {
	var out []ReportPoint
	kv = kv.Norm()
	if kv.Key == "" || kv.Value == "" {
		return out, nil
	}
	err := r.conn(tx).WithContext(ctx).
		Table("extracted_attribute ea").
		Select("r.id AS report_id, r.latitude, r.longitude, r.occurred_at").
		Joins("JOIN report r ON r.id = ea.report_id AND r.deleted_at IS NULL AND r.visibility = ?", types.VisibilityPublic).
		Where("ea.attribute_key = ? AND lower(ea.value) = ?", kv.Key, kv.Value).
		Order("r.occurred_at ASC, r.id ASC").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *extractedAttributeRepo) CountByKey(ctx context.Context, tx *gorm.DB, key string, category string) (int64, error) {
	var n int64
	q := r.conn(tx).WithContext(ctx).Model(&types.ExtractedAttribute{}).Where("attribute_key = ?", key)
	if category = strings.TrimSpace(category); category != "" {
		q = q.Where("report_id IN (SELECT id FROM report WHERE category = ?)", category)
	}
	err := q.Count(&n).Error
	return n, err
}

func (r *extractedAttributeRepo) DeleteByKey(ctx context.Context, tx *gorm.DB, key string, category string) error {
	q := r.conn(tx).WithContext(ctx).Where("attribute_key = ?", key)
	if category = strings.TrimSpace(category); category != "" {
		q = q.Where("report_id IN (SELECT id FROM report WHERE category = ?)", category)
	}
	return q.Delete(&types.ExtractedAttribute{}).Error
}
