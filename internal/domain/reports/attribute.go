package reports

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	DataTypeText    = "text"
	DataTypeEnum    = "enum"
	DataTypeBoolean = "boolean"
	DataTypeNumber  = "number"

	ScopeGlobal   = "global"
	ScopeCategory = "category"

	ProvenanceAIExtracted   = "ai_extracted"
	ProvenanceUserConfirmed = "user_confirmed"
)

// Category is a report category ("ufo", "dream", ...). Definitions hang off it.
type Category struct {
	Key       string    `gorm:"column:key;primaryKey" json:"key"`
	Name      string    `gorm:"column:name;not null" json:"name"`
	SortIndex int       `gorm:"column:sort_index;not null;default:0" json:"sort_index"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Category) TableName() string { return "report_category" }

// AttributeDefinition describes one typed attribute. Keys are unique within
// (scope, category).
type AttributeDefinition struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Key      string    `gorm:"column:key;not null;uniqueIndex:idx_attr_def_scope_key,priority:3" json:"key"`
	Label    string    `gorm:"column:label" json:"label"`
	DataType string    `gorm:"column:data_type;not null;default:'text'" json:"data_type"`
	// []string, only populated for enum definitions
	AllowedValues datatypes.JSON `gorm:"column:allowed_values;type:jsonb" json:"allowed_values,omitempty"`
	Scope         string         `gorm:"column:scope;not null;default:'global';uniqueIndex:idx_attr_def_scope_key,priority:1" json:"scope"`
	// Empty for global definitions so the unique index also covers them.
	Category    string    `gorm:"column:category;not null;default:'';uniqueIndex:idx_attr_def_scope_key,priority:2" json:"category,omitempty"`
	Description string    `gorm:"column:description;type:text" json:"description,omitempty"`
	Searchable  bool      `gorm:"column:searchable;not null;default:true" json:"searchable"`
	Filterable  bool      `gorm:"column:filterable;not null;default:false" json:"filterable"`
	SortIndex   int       `gorm:"column:sort_index;not null;default:0" json:"sort_index"`
	CreatedAt   time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (AttributeDefinition) TableName() string { return "attribute_definition" }

func (d *AttributeDefinition) IsEnum() bool {
	return d != nil && d.DataType == DataTypeEnum
}

// Allowed decodes AllowedValues; malformed JSON yields an empty list.
func (d *AttributeDefinition) Allowed() []string {
	if d == nil {
		return nil
	}
	return decodeStrings(d.AllowedValues)
}

// ExtractedAttribute is the current value of one attribute for one report.
// (report_id, attribute_key) is unique; writes are upserts.
type ExtractedAttribute struct {
	ID           uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ReportID     uuid.UUID `gorm:"type:uuid;column:report_id;not null;uniqueIndex:idx_extracted_attr_report_key,priority:1" json:"report_id"`
	AttributeKey string    `gorm:"column:attribute_key;not null;uniqueIndex:idx_extracted_attr_report_key,priority:2;index:idx_extracted_attr_key_value,priority:1" json:"attribute_key"`
	Value        string    `gorm:"column:value;not null;index:idx_extracted_attr_key_value,priority:2" json:"value"`
	Confidence   float64   `gorm:"column:confidence;not null;default:0" json:"confidence"`
	Provenance   string    `gorm:"column:provenance;not null;default:'ai_extracted'" json:"provenance"`
	Evidence     string    `gorm:"column:evidence;type:text" json:"evidence,omitempty"`
	CreatedBy    string    `gorm:"column:created_by" json:"created_by,omitempty"`
	CreatedAt    time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (ExtractedAttribute) TableName() string { return "extracted_attribute" }

// SearchEvent is the analytics fact recorded once per search.
type SearchEvent struct {
	ID                uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Query             string    `gorm:"column:query;type:text;not null" json:"query"`
	NormalizedQuery   string    `gorm:"column:normalized_query;type:text" json:"normalized_query"`
	Category          string    `gorm:"column:category" json:"category,omitempty"`
	IsQuestion        bool      `gorm:"column:is_question" json:"is_question"`
	IsNaturalLanguage bool      `gorm:"column:is_natural_language" json:"is_natural_language"`
	IsKeyword         bool      `gorm:"column:is_keyword" json:"is_keyword"`
	VectorWeight      float64   `gorm:"column:vector_weight" json:"vector_weight"`
	FTSWeight         float64   `gorm:"column:fts_weight" json:"fts_weight"`
	ResultCount       int       `gorm:"column:result_count" json:"result_count"`
	LatencyMS         int64     `gorm:"column:latency_ms" json:"latency_ms"`
	EmbeddingFailed   bool      `gorm:"column:embedding_failed" json:"embedding_failed"`
	LexicalFallback   bool      `gorm:"column:lexical_fallback" json:"lexical_fallback"`
	CreatedAt         time.Time `gorm:"not null;default:now();index" json:"created_at"`
}

func (SearchEvent) TableName() string { return "search_event" }

// TagList decodes the report's tags, lower-cased and de-duplicated.
func (r *Report) TagList() []string {
	if r == nil {
		return nil
	}
	raw := decodeStrings(r.Tags)
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// EncodeStrings is the inverse of the JSON string-list decoders above.
func EncodeStrings(vals []string) datatypes.JSON {
	if vals == nil {
		vals = []string{}
	}
	b, _ := json.Marshal(vals)
	return datatypes.JSON(b)
}

func decodeStrings(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
