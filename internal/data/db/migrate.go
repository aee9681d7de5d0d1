package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/patternlens-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(
		// =========================
		// Reports + schema
		// =========================
		&types.Category{},
		&types.Report{},
		&types.AttributeDefinition{},
		&types.ExtractedAttribute{},

		// =========================
		// Analytics
		// =========================
		&types.SearchEvent{},
	); err != nil {
		return err
	}
	for _, stmt := range postMigrations {
		if err := db.Exec(stmt.sql).Error; err != nil {
			return fmt.Errorf("migration %s: %w", stmt.name, err)
		}
	}
	return nil
}

type migration struct {
	name string
	sql  string
}

var postMigrations = []migration{
	{
		name: "report_search_vector",
		sql: `ALTER TABLE report ADD COLUMN IF NOT EXISTS search_vector tsvector
			GENERATED ALWAYS AS (
				setweight(to_tsvector('english', coalesce(title, '')), 'A') ||
				setweight(to_tsvector('english', coalesce(body, '')), 'B') ||
				setweight(to_tsvector('english', coalesce(location_text, '')), 'C')
			) STORED`,
	},
	{
		name: "report_search_vector_idx",
		sql:  `CREATE INDEX IF NOT EXISTS idx_report_search_vector ON report USING GIN (search_vector)`,
	},
	{
		name: "report_embedding_idx",
		sql:  `CREATE INDEX IF NOT EXISTS idx_report_embedding ON report USING hnsw (embedding vector_cosine_ops)`,
	},
	{
		name: "report_tags_idx",
		sql:  `CREATE INDEX IF NOT EXISTS idx_report_tags ON report USING GIN (tags jsonb_path_ops)`,
	},
	{
		name: "extracted_attribute_value_ci_idx",
		sql:  `CREATE INDEX IF NOT EXISTS idx_extracted_attr_key_lower_value ON extracted_attribute (attribute_key, lower(value))`,
	},
	{
		// Weighted reciprocal rank fusion of a cosine nearest-neighbour ranking and a
		// full-text ranking. A NULL embedding leaves only the lexical leg.
		name: "hybrid_search_reports",
		sql: `CREATE OR REPLACE FUNCTION hybrid_search_reports(
				query_text text,
				query_embedding vector,
				vector_weight double precision,
				fts_weight double precision,
				category_filter text,
				match_limit integer,
				rrf_k integer DEFAULT 60
			)
			RETURNS TABLE (report_id uuid, score double precision, vector_rank bigint, fts_rank bigint)
			LANGUAGE sql STABLE AS $$
			WITH q AS (
				SELECT websearch_to_tsquery('english', query_text) AS tsq
			),
			semantic AS (
				SELECT r.id, row_number() OVER (ORDER BY r.embedding <=> query_embedding) AS rank
				FROM report r
				WHERE query_embedding IS NOT NULL
					AND r.embedding IS NOT NULL
					AND r.deleted_at IS NULL
					AND r.visibility = 'public'
					AND (coalesce(category_filter, '') = '' OR r.category = category_filter)
				ORDER BY r.embedding <=> query_embedding
				LIMIT match_limit * 2
			),
			lexical AS (
				SELECT r.id, row_number() OVER (ORDER BY ts_rank_cd(r.search_vector, q.tsq) DESC) AS rank
				FROM report r, q
				WHERE r.search_vector @@ q.tsq
					AND r.deleted_at IS NULL
					AND r.visibility = 'public'
					AND (coalesce(category_filter, '') = '' OR r.category = category_filter)
				ORDER BY ts_rank_cd(r.search_vector, q.tsq) DESC
				LIMIT match_limit * 2
			)
			SELECT coalesce(s.id, l.id) AS report_id,
				coalesce(vector_weight / (rrf_k + s.rank), 0.0) +
				coalesce(fts_weight / (rrf_k + l.rank), 0.0) AS score,
				s.rank AS vector_rank,
				l.rank AS fts_rank
			FROM semantic s
			FULL OUTER JOIN lexical l ON s.id = l.id
			ORDER BY score DESC, report_id ASC
			LIMIT match_limit
			$$`,
	},
}
