package reports

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/patternlens-backend/internal/domain"
	"github.com/yungbote/patternlens-backend/internal/platform/logger"
)

// HybridHit is one row of hybrid_search_reports.
type HybridHit struct {
	ReportID   uuid.UUID `gorm:"column:report_id"`
	Score      float64   `gorm:"column:score"`
	VectorRank *int64    `gorm:"column:vector_rank"`
	FTSRank    *int64    `gorm:"column:fts_rank"`
}

// HybridQuery carries the arguments of the server-side hybrid search.
type HybridQuery struct {
	Text         string
	Embedding    []float32
	VectorWeight float64
	FTSWeight    float64
	Category     string
	Limit        int
}

type ReportRepo interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Report, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Report, error)

	// ListSimilarityCandidates returns public reports of a category, excluding the source.
	// Reports sharing attribute values or tags with the source come first, then the most
	// recent, so a limit keeps the likeliest matches.
	ListSimilarityCandidates(ctx context.Context, tx *gorm.DB, category string, exclude uuid.UUID, limit int) ([]*types.Report, error)
	ListRecent(ctx context.Context, tx *gorm.DB, category string, limit int) ([]*types.Report, error)
	// ListForBackfill returns reports in creation order; onlyMissing skips reports that
	// already carry at least one extracted attribute.
	ListForBackfill(ctx context.Context, tx *gorm.DB, category string, onlyMissing bool, limit int) ([]*types.Report, error)

	UpdateEmbedding(ctx context.Context, tx *gorm.DB, id uuid.UUID, embedding []float32) error

	HybridSearch(ctx context.Context, tx *gorm.DB, q HybridQuery) ([]HybridHit, error)
	// LexicalSearch ranks public reports by full-text relevance with OR semantics over terms.
	LexicalSearch(ctx context.Context, tx *gorm.DB, text string, category string, limit int) ([]*types.Report, error)
}

type reportRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReportRepo(db *gorm.DB, baseLog *logger.Logger) ReportRepo {
	return &reportRepo{db: db, log: baseLog.With("repo", "ReportRepo")}
}

func (r *reportRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *reportRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Report, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	rows, err := r.GetByIDs(ctx, tx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *reportRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Report, error) {
	var out []*types.Report
	if len(ids) == 0 {
		return out, nil
	}
	if err := r.conn(tx).WithContext(ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

const candidateOrderSQL = `(
	SELECT count(*) FROM extracted_attribute ea
	JOIN extracted_attribute src
	  ON src.report_id = ? AND src.attribute_key = ea.attribute_key AND lower(src.value) = lower(ea.value)
	WHERE ea.report_id = report.id
) DESC, (
	SELECT count(*) FROM jsonb_array_elements_text(COALESCE(report.tags, '[]'::jsonb)) AS t(tag)
	WHERE lower(t.tag) IN (
		SELECT lower(s.tag) FROM report sr, jsonb_array_elements_text(COALESCE(sr.tags, '[]'::jsonb)) AS s(tag)
		WHERE sr.id = ?
	)
) DESC, occurred_at DESC, id ASC`

func (r *reportRepo) ListSimilarityCandidates(ctx context.Context, tx *gorm.DB, category string, exclude uuid.UUID, limit int) ([]*types.Report, error) {
	var out []*types.Report
	if strings.TrimSpace(category) == "" {
		return out, nil
	}
	q := r.conn(tx).WithContext(ctx).
		Where("category = ? AND visibility = ? AND id <> ?", category, types.VisibilityPublic, exclude).
		Clauses(clause.OrderBy{Expression: clause.Expr{
			SQL:                candidateOrderSQL,
			Vars:               []interface{}{exclude, exclude},
			WithoutParentheses: true,
		}})
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *reportRepo) ListRecent(ctx context.Context, tx *gorm.DB, category string, limit int) ([]*types.Report, error) {
	var out []*types.Report
	q := r.conn(tx).WithContext(ctx).Where("visibility = ?", types.VisibilityPublic)
	if category = strings.TrimSpace(category); category != "" {
		q = q.Where("category = ?", category)
	}
	if limit <= 0 {
		limit = 20
	}
	if err := q.Order("created_at DESC, id ASC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *reportRepo) ListForBackfill(ctx context.Context, tx *gorm.DB, category string, onlyMissing bool, limit int) ([]*types.Report, error) {
	var out []*types.Report
	q := r.conn(tx).WithContext(ctx).Model(&types.Report{})
	if category = strings.TrimSpace(category); category != "" {
		q = q.Where("category = ?", category)
	}
	if onlyMissing {
		q = q.Where("NOT EXISTS (SELECT 1 FROM extracted_attribute ea WHERE ea.report_id = report.id)")
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Order("created_at ASC, id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *reportRepo) UpdateEmbedding(ctx context.Context, tx *gorm.DB, id uuid.UUID, embedding []float32) error {
	if id == uuid.Nil || len(embedding) == 0 {
		return nil
	}
	return r.conn(tx).WithContext(ctx).
		Model(&types.Report{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"embedding":  types.Vector(embedding),
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *reportRepo) HybridSearch(ctx context.Context, tx *gorm.DB, q HybridQuery) ([]HybridHit, error) {
	var out []HybridHit
	if strings.TrimSpace(q.Text) == "" {
		return out, nil
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	var embedding interface{}
	if len(q.Embedding) > 0 {
		embedding = types.Vector(q.Embedding).String()
	}
	err := r.conn(tx).WithContext(ctx).
		Raw(
			`SELECT report_id, score, vector_rank, fts_rank FROM hybrid_search_reports(?, ?::vector, ?, ?, ?, ?)`,
			q.Text, embedding, q.VectorWeight, q.FTSWeight, q.Category, limit,
		).
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("hybrid_search_reports: %w", err)
	}
	return out, nil
}

func (r *reportRepo) LexicalSearch(ctx context.Context, tx *gorm.DB, text string, category string, limit int) ([]*types.Report, error) {
	var out []*types.Report
	tsq := orQuery(text)
	if tsq == "" {
		return out, nil
	}
	if limit <= 0 {
		limit = 20
	}
	q := r.conn(tx).WithContext(ctx).
		Where("visibility = ?", types.VisibilityPublic).
		Where("search_vector @@ to_tsquery('english', ?)", tsq)
	if category = strings.TrimSpace(category); category != "" {
		q = q.Where("category = ?", category)
	}
	err := q.
		Clauses(clause.OrderBy{Expression: clause.Expr{
			SQL:                "ts_rank(search_vector, to_tsquery('english', ?)) DESC, id ASC",
			Vars:               []interface{}{tsq},
			WithoutParentheses: true,
		}}).
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// orQuery turns free text into "term1 | term2" keeping only letters and digits so the
// result is always a valid to_tsquery expression.
func orQuery(text string) string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(fields))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		terms = append(terms, f)
	}
	return strings.Join(terms, " | ")
}
