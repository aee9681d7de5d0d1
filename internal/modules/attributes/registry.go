package attributes

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/yungbote/patternlens-backend/internal/data/repos"
	types "github.com/yungbote/patternlens-backend/internal/domain"
	"github.com/yungbote/patternlens-backend/internal/platform/apierr"
	"github.com/yungbote/patternlens-backend/internal/platform/logger"
)

var keyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

type RegistryDeps struct {
	DB          *gorm.DB
	Log         *logger.Logger
	Categories  repos.CategoryRepo
	Definitions repos.AttributeDefinitionRepo
	Extracted   repos.ExtractedAttributeRepo
}

// Registry serves the typed attribute definitions that apply to each category.
type Registry struct {
	deps RegistryDeps
	log  *logger.Logger
}

func NewRegistry(deps RegistryDeps) *Registry {
	return &Registry{deps: deps, log: deps.Log.With("service", "AttributeRegistry")}
}

// DefinitionsFor returns global plus category-scoped definitions ordered by
// (sort_index, key). A category-scoped definition replaces a global one with the same key.
func (r *Registry) DefinitionsFor(ctx context.Context, category string) ([]*types.AttributeDefinition, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, apierr.Validation("category required")
	}
	cat, err := r.deps.Categories.GetByKey(ctx, nil, category)
	if err != nil {
		return nil, err
	}
	if cat == nil {
		return nil, apierr.NotFound("unknown category %q", category)
	}
	rows, err := r.deps.Definitions.ListForCategory(ctx, nil, category)
	if err != nil {
		return nil, err
	}
	return mergeDefinitions(rows), nil
}

func mergeDefinitions(rows []*types.AttributeDefinition) []*types.AttributeDefinition {
	byKey := make(map[string]*types.AttributeDefinition, len(rows))
	for _, d := range rows {
		if d == nil {
			continue
		}
		if prev, ok := byKey[d.Key]; ok && prev.Scope == types.ScopeCategory && d.Scope != types.ScopeCategory {
			continue
		}
		byKey[d.Key] = d
	}
	out := make([]*types.AttributeDefinition, 0, len(byKey))
	for _, d := range byKey {
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SortIndex != out[j].SortIndex {
			return out[i].SortIndex < out[j].SortIndex
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func (r *Registry) Categories(ctx context.Context) ([]*types.Category, error) {
	return r.deps.Categories.List(ctx, nil)
}

// DeleteDefinition removes a definition. Extracted values still referencing it make this a
// conflict unless cascade is set, in which case those values are deleted with it.
func (r *Registry) DeleteDefinition(ctx context.Context, id uuid.UUID, cascade bool) error {
	if id == uuid.Nil {
		return apierr.Validation("definition id required")
	}
	return r.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		def, err := r.deps.Definitions.GetByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if def == nil {
			return apierr.NotFound("attribute definition %s not found", id)
		}
		// global definitions govern values in every category
		category := ""
		if def.Scope == types.ScopeCategory {
			category = def.Category
		}
		n, err := r.deps.Extracted.CountByKey(ctx, tx, def.Key, category)
		if err != nil {
			return err
		}
		if n > 0 && !cascade {
			return apierr.Conflict("attribute %q is referenced by %d extracted values", def.Key, n)
		}
		if n > 0 {
			if err := r.deps.Extracted.DeleteByKey(ctx, tx, def.Key, category); err != nil {
				return err
			}
			r.log.Warn("cascade deleted extracted attributes", "key", def.Key, "category", category, "count", n)
		}
		return r.deps.Definitions.DeleteByID(ctx, tx, id)
	})
}

// SchemaFile is the YAML layout accepted by SeedFromYAML.
type SchemaFile struct {
	Global     []DefinitionSpec `yaml:"global"`
	Categories []CategorySpec   `yaml:"categories"`
}

type CategorySpec struct {
	Key        string           `yaml:"key"`
	Name       string           `yaml:"name"`
	SortIndex  int              `yaml:"sort_index"`
	Attributes []DefinitionSpec `yaml:"attributes"`
}

type DefinitionSpec struct {
	Key           string   `yaml:"key"`
	Label         string   `yaml:"label"`
	DataType      string   `yaml:"data_type"`
	AllowedValues []string `yaml:"allowed_values"`
	Description   string   `yaml:"description"`
	Searchable    *bool    `yaml:"searchable"`
	Filterable    bool     `yaml:"filterable"`
	SortIndex     int      `yaml:"sort_index"`
}

type SeedResult struct {
	Categories  int `json:"categories"`
	Definitions int `json:"definitions"`
}

// SeedFromYAML upserts categories and definitions in one transaction. Re-running the same
// file is a no-op apart from updated_at.
func (r *Registry) SeedFromYAML(ctx context.Context, src io.Reader) (SeedResult, error) {
	var res SeedResult
	var file SchemaFile
	if err := yaml.NewDecoder(src).Decode(&file); err != nil && err != io.EOF {
		return res, apierr.Validation("parse schema file: %v", err)
	}
	var defs []*types.AttributeDefinition
	for _, ds := range file.Global {
		d, err := ds.toModel(types.ScopeGlobal, "")
		if err != nil {
			return res, err
		}
		defs = append(defs, d)
	}
	cats := make([]*types.Category, 0, len(file.Categories))
	for _, c := range file.Categories {
		key := strings.TrimSpace(c.Key)
		if !keyPattern.MatchString(key) {
			return res, apierr.Validation("category key %q must be snake_case", c.Key)
		}
		name := strings.TrimSpace(c.Name)
		if name == "" {
			name = key
		}
		cats = append(cats, &types.Category{Key: key, Name: name, SortIndex: c.SortIndex})
		for _, ds := range c.Attributes {
			d, err := ds.toModel(types.ScopeCategory, key)
			if err != nil {
				return res, err
			}
			defs = append(defs, d)
		}
	}

	err := r.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, c := range cats {
			if err := r.deps.Categories.Upsert(ctx, tx, c); err != nil {
				return fmt.Errorf("upsert category %s: %w", c.Key, err)
			}
		}
		for _, d := range defs {
			if err := r.deps.Definitions.UpsertByScopeAndKey(ctx, tx, d); err != nil {
				return fmt.Errorf("upsert definition %s/%s: %w", d.Category, d.Key, err)
			}
		}
		return nil
	})
	if err != nil {
		return res, err
	}
	res.Categories = len(cats)
	res.Definitions = len(defs)
	r.log.Info("attribute schema seeded", "categories", res.Categories, "definitions", res.Definitions)
	return res, nil
}

func (s DefinitionSpec) toModel(scope, category string) (*types.AttributeDefinition, error) {
	key := strings.TrimSpace(s.Key)
	if !keyPattern.MatchString(key) {
		return nil, apierr.Validation("attribute key %q must be snake_case", s.Key)
	}
	dt := strings.ToLower(strings.TrimSpace(s.DataType))
	if dt == "" {
		dt = types.DataTypeText
	}
	switch dt {
	case types.DataTypeText, types.DataTypeEnum, types.DataTypeBoolean, types.DataTypeNumber:
	default:
		return nil, apierr.Validation("attribute %q: unknown data type %q", key, s.DataType)
	}
	var allowed []string
	if dt == types.DataTypeEnum {
		for _, v := range s.AllowedValues {
			if v = strings.TrimSpace(v); v != "" {
				allowed = append(allowed, v)
			}
		}
		if len(allowed) == 0 {
			return nil, apierr.Validation("attribute %q: enum requires allowed_values", key)
		}
	} else if len(s.AllowedValues) > 0 {
		return nil, apierr.Validation("attribute %q: allowed_values only apply to enums", key)
	}
	searchable := true
	if s.Searchable != nil {
		searchable = *s.Searchable
	}
	label := strings.TrimSpace(s.Label)
	if label == "" {
		label = key
	}
	d := &types.AttributeDefinition{
		Key:         key,
		Label:       label,
		DataType:    dt,
		Scope:       scope,
		Category:    category,
		Description: strings.TrimSpace(s.Description),
		Searchable:  searchable,
		Filterable:  s.Filterable,
		SortIndex:   s.SortIndex,
	}
	if allowed != nil {
		d.AllowedValues = types.EncodeStrings(allowed)
	}
	return d, nil
}
