package similarity

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/yungbote/patternlens-backend/internal/data/repos"
	types "github.com/yungbote/patternlens-backend/internal/domain"
	"github.com/yungbote/patternlens-backend/internal/platform/apierr"
	"github.com/yungbote/patternlens-backend/internal/platform/logger"
)

const Algorithm = "hybrid_tag_location_attributes"

type ServiceConfig struct {
	DefaultLimit int
	MaxLimit     int
	// CandidatePool caps how many same-category reports are scored per request.
	CandidatePool int
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{DefaultLimit: 10, MaxLimit: 50, CandidatePool: 500}
}

type ServiceDeps struct {
	Log       *logger.Logger
	Reports   repos.ReportRepo
	Extracted repos.ExtractedAttributeRepo
	Scorer    *Scorer
	Config    ServiceConfig
}

type Match struct {
	Report *types.Report `json:"report"`
	Score
}

type Stats struct {
	CandidatesConsidered int     `json:"candidatesConsidered"`
	Returned             int     `json:"returned"`
	AverageScore         float64 `json:"averageScore"`
	TopScore             int     `json:"topScore"`
	SourceAttributes     int     `json:"sourceAttributes"`
}

type Weights struct {
	TagLocation float64 `json:"tagLocation"`
	Attributes  float64 `json:"attributes"`
}

type Result struct {
	Similar   []Match `json:"similar"`
	Stats     Stats   `json:"stats"`
	Algorithm string  `json:"algorithm"`
	Weights   Weights `json:"weights"`
}

type Service struct {
	deps ServiceDeps
	cfg  ServiceConfig
	log  *logger.Logger
}

func NewService(deps ServiceDeps) *Service {
	def := DefaultServiceConfig()
	cfg := deps.Config
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = def.DefaultLimit
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = def.MaxLimit
	}
	if cfg.CandidatePool <= 0 {
		cfg.CandidatePool = def.CandidatePool
	}
	if deps.Scorer == nil {
		deps.Scorer = NewScorer(DefaultConfig())
	}
	return &Service{deps: deps, cfg: cfg, log: deps.Log.With("service", "SimilarityService")}
}

// FindSimilar scores public reports of the source's category against it. Ordering is
// hybrid score, then shared attribute count, then recency, then id, so equal inputs
// always produce the same list.
func (s *Service) FindSimilar(ctx context.Context, reportID uuid.UUID, limit int) (*Result, error) {
	if reportID == uuid.Nil {
		return nil, apierr.Validation("report id required")
	}
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	if limit > s.cfg.MaxLimit {
		return nil, apierr.Validation("limit must be <= %d", s.cfg.MaxLimit)
	}
	source, err := s.deps.Reports.GetByID(ctx, nil, reportID)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, apierr.NotFound("report %s not found", reportID)
	}
	candidates, err := s.deps.Reports.ListSimilarityCandidates(ctx, nil, source.Category, source.ID, s.cfg.CandidatePool)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(candidates)+1)
	ids = append(ids, source.ID)
	for _, c := range candidates {
		ids = append(ids, c.ID)
	}
	attrs, err := s.deps.Extracted.ListByReportIDs(ctx, nil, ids)
	if err != nil {
		return nil, err
	}
	byReport := make(map[uuid.UUID][]*types.ExtractedAttribute, len(ids))
	for _, a := range attrs {
		byReport[a.ReportID] = append(byReport[a.ReportID], a)
	}

	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		if c.ID == source.ID || c.Visibility != types.VisibilityPublic {
			continue
		}
		matches = append(matches, Match{
			Report: c,
			Score:  s.deps.Scorer.Score(source, c, byReport[source.ID], byReport[c.ID]),
		})
	}
	Rank(matches)

	stats := Stats{CandidatesConsidered: len(matches), SourceAttributes: len(byReport[source.ID])}
	if len(matches) > 0 {
		total := 0
		for _, m := range matches {
			total += m.HybridScore
		}
		stats.AverageScore = float64(total) / float64(len(matches))
		stats.TopScore = matches[0].HybridScore
	}
	if len(matches) > limit {
		matches = matches[:limit]
	}
	stats.Returned = len(matches)

	cfg := s.deps.Scorer.Config()
	return &Result{
		Similar:   matches,
		Stats:     stats,
		Algorithm: Algorithm,
		Weights:   Weights{TagLocation: cfg.TagLocationWeight, Attributes: cfg.AttributeWeight},
	}, nil
}

// Rank sorts matches best first with a total order.
func Rank(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.HybridScore != b.HybridScore {
			return a.HybridScore > b.HybridScore
		}
		if len(a.SharedAttributes) != len(b.SharedAttributes) {
			return len(a.SharedAttributes) > len(b.SharedAttributes)
		}
		if !a.Report.OccurredAt.Equal(b.Report.OccurredAt) {
			return a.Report.OccurredAt.After(b.Report.OccurredAt)
		}
		return a.Report.ID.String() < b.Report.ID.String()
	})
}
