package engine

import (
	"log/slog"
	"sort"

	"github.com/arnabghosh/compute-matcher/internal/domain"
)

// Summary is the per-cycle outcome reported to callers
type Summary struct {
	Matched   int `json:"matched"`
	Unmatched int `json:"unmatched"`
	Errors    int `json:"errors"`
}

// Plan is the result of one allocation pass
type Plan struct {
	// Matches are listed in the order demands were processed
	Matches []domain.MatchResult `json:"matches"`

	// Unmatched holds demands that had no resource clearing the threshold
	Unmatched []string `json:"unmatched"`

	// Rejected holds malformed input records that were skipped
	Rejected []domain.RejectedRecord `json:"rejected"`
}

// Summary counts the plan's outcomes
func (p *Plan) Summary() Summary {
	return Summary{
		Matched:   len(p.Matches),
		Unmatched: len(p.Unmatched),
		Errors:    len(p.Rejected),
	}
}

// Allocator assigns resources to demands for a single matching cycle.
// It holds only immutable configuration; every call is independent.
type Allocator struct {
	config Config
	logger *slog.Logger
}

// NewAllocator validates cfg and creates an allocator.
// Configuration errors are returned here, before any cycle runs.
func NewAllocator(cfg Config, logger *slog.Logger) (*Allocator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Allocator{
		config: cfg,
		logger: logger.With("component", "allocator"),
	}, nil
}

// Config returns the allocator configuration
func (a *Allocator) Config() Config {
	return a.config
}

// Allocate runs one allocation pass over all demands
func (a *Allocator) Allocate(demands []*domain.Demand, resources []*domain.Resource) *Plan {
	return a.AllocateBatches(demands, resources, 0)
}

// AllocateBatches runs an allocation pass processing demands in sequential
// batches of at most batchSize (0 means a single batch). Resources consumed by
// earlier batches are unavailable to later ones.
func (a *Allocator) AllocateBatches(demands []*domain.Demand, resources []*domain.Resource, batchSize int) *Plan {
	plan := &Plan{
		Matches:   []domain.MatchResult{},
		Unmatched: []string{},
		Rejected:  []domain.RejectedRecord{},
	}

	ordered := a.admitDemands(demands, plan)
	pool := a.admitResources(resources, plan)
	consumed := make(Consumed, len(pool))

	if batchSize <= 0 || batchSize > len(ordered) {
		batchSize = len(ordered)
	}

	for start := 0; start < len(ordered); start += batchSize {
		end := start + batchSize
		if end > len(ordered) {
			end = len(ordered)
		}
		a.allocateBatch(ordered[start:end], pool, consumed, plan)
		pool = remaining(pool, consumed)

		if end < len(ordered) {
			a.logger.Debug("Allocation batch complete",
				"batch_start", start,
				"batch_end", end,
				"remaining_resources", len(pool),
			)
		}
	}

	return plan
}

func (a *Allocator) allocateBatch(batch []*domain.Demand, pool []*domain.Resource, consumed Consumed, plan *Plan) {
	for _, d := range batch {
		match, ok := a.selectFor(d, pool, consumed)
		if !ok {
			plan.Unmatched = append(plan.Unmatched, d.ID)
			continue
		}
		consumed.Add(match.ResourceID)
		plan.Matches = append(plan.Matches, match)

		a.logger.Debug("Demand matched",
			"demand_id", d.ID,
			"resource_id", match.ResourceID,
			"score", match.Score,
			"alternates", len(match.Alternates),
		)
	}
}

// selectFor scores every eligible resource and picks the best one
func (a *Allocator) selectFor(d *domain.Demand, pool []*domain.Resource, consumed Consumed) (domain.MatchResult, bool) {
	eligible := Filter(d, pool, consumed)
	if len(eligible) == 0 {
		a.logger.Debug("No eligible resources", "demand_id", d.ID)
		return domain.MatchResult{}, false
	}

	candidates := make([]domain.Candidate, len(eligible))
	for i, r := range eligible {
		candidates[i] = domain.Candidate{
			ResourceID: r.ID,
			Score:      Score(d, r, a.config.Weights),
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].ResourceID < candidates[j].ResourceID
	})

	best := candidates[0]
	if best.Score < a.config.ScoreThreshold {
		a.logger.Debug("Best score below threshold",
			"demand_id", d.ID,
			"resource_id", best.ResourceID,
			"score", best.Score,
			"threshold", a.config.ScoreThreshold,
		)
		return domain.MatchResult{}, false
	}

	return domain.MatchResult{
		DemandID:   d.ID,
		ResourceID: best.ResourceID,
		Score:      best.Score,
		Alternates: alternates(candidates, a.config.MaxAlternates),
	}, true
}

// alternates picks the runner-ups with the next-highest distinct scores.
// candidates must be sorted and non-empty.
func alternates(candidates []domain.Candidate, limit int) []domain.Candidate {
	if limit == 0 {
		return nil
	}
	var out []domain.Candidate
	last := candidates[0].Score
	for _, c := range candidates[1:] {
		if c.Score == last {
			continue
		}
		out = append(out, c)
		last = c.Score
		if len(out) == limit {
			break
		}
	}
	return out
}

// admitDemands drops malformed or duplicate demands and orders the rest by
// priority desc, creation time asc, then input order
func (a *Allocator) admitDemands(demands []*domain.Demand, plan *Plan) []*domain.Demand {
	seen := make(map[string]struct{}, len(demands))
	admitted := make([]*domain.Demand, 0, len(demands))

	for _, d := range demands {
		if err := domain.ValidateDemand(d); err != nil {
			a.reject(plan, domain.RecordDemand, idOf(d), err.Error())
			continue
		}
		if _, dup := seen[d.ID]; dup {
			a.reject(plan, domain.RecordDemand, d.ID, "duplicate demand id")
			continue
		}
		seen[d.ID] = struct{}{}
		admitted = append(admitted, d)
	}

	sort.SliceStable(admitted, func(i, j int) bool {
		if admitted[i].Priority != admitted[j].Priority {
			return admitted[i].Priority > admitted[j].Priority
		}
		return admitted[i].CreatedAt.Before(admitted[j].CreatedAt)
	})
	return admitted
}

// admitResources drops malformed or duplicate resources, keeping input order
func (a *Allocator) admitResources(resources []*domain.Resource, plan *Plan) []*domain.Resource {
	seen := make(map[string]struct{}, len(resources))
	admitted := make([]*domain.Resource, 0, len(resources))

	for _, r := range resources {
		if err := domain.ValidateResource(r); err != nil {
			a.reject(plan, domain.RecordResource, resourceID(r), err.Error())
			continue
		}
		if _, dup := seen[r.ID]; dup {
			a.reject(plan, domain.RecordResource, r.ID, "duplicate resource id")
			continue
		}
		seen[r.ID] = struct{}{}
		admitted = append(admitted, r)
	}
	return admitted
}

func (a *Allocator) reject(plan *Plan, kind domain.RecordKind, id, reason string) {
	plan.Rejected = append(plan.Rejected, domain.RejectedRecord{Kind: kind, ID: id, Reason: reason})
	a.logger.Warn("Skipping malformed record",
		"kind", kind,
		"id", id,
		"reason", reason,
	)
}

func remaining(pool []*domain.Resource, consumed Consumed) []*domain.Resource {
	out := pool[:0:0]
	for _, r := range pool {
		if !consumed.Has(r.ID) {
			out = append(out, r)
		}
	}
	return out
}

func idOf(d *domain.Demand) string {
	if d == nil {
		return ""
	}
	return d.ID
}

func resourceID(r *domain.Resource) string {
	if r == nil {
		return ""
	}
	return r.ID
}
