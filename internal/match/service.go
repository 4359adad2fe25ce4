package match

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"oppradar/internal/model"
)

// Default bounds for match computation and retrieval.
const (
	DefaultMinScore = 0.3
	DefaultLimit    = 50
	MaxTopMatches   = 50

	// candidatePage is how many active opportunities are pulled per store
	// round trip while recomputing.
	candidatePage = 200
)

// Store is the persistence the service needs. *store.Store satisfies it.
type Store interface {
	GetProfile(ctx context.Context, id string) (*model.Profile, error)
	ActiveOpportunities(ctx context.Context, limit, offset int) ([]model.Opportunity, error)
	UpsertMatch(ctx context.Context, m *model.Match) error
	TopMatches(ctx context.Context, profileID string, limit int) ([]model.Match, error)
}

// Service recomputes and serves matches for a profile.
type Service struct {
	store  Store
	scorer *Scorer
	log    *zap.Logger
}

// NewService wires the match service. A nil logger is replaced with a nop.
func NewService(st Store, scorer *Scorer, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if scorer == nil {
		scorer = NewScorer()
	}
	return &Service{store: st, scorer: scorer, log: log}
}

// ComputeMatches scores every active opportunity against the profile,
// persists pairs at or above minScore, and returns the best ones ordered by
// score. Recomputation never touches a match's user-set status.
func (s *Service) ComputeMatches(ctx context.Context, profileID string, limit int, minScore float64) ([]*model.Match, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if minScore <= 0 {
		minScore = DefaultMinScore
	}

	profile, err := s.store.GetProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}

	var kept []*model.Match
	scanned := 0
	for offset := 0; ; offset += candidatePage {
		opps, err := s.store.ActiveOpportunities(ctx, candidatePage, offset)
		if err != nil {
			return nil, fmt.Errorf("listing candidates: %w", err)
		}
		if len(opps) == 0 {
			break
		}
		scanned += len(opps)

		for i := range opps {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			opp := &opps[i]
			scored := s.scorer.Score(profile, opp)
			if scored.Score < minScore {
				continue
			}
			m := &model.Match{
				ProfileID:     profileID,
				OpportunityID: opp.ID,
				Score:         scored.Score,
				Breakdown:     scored.Breakdown,
				Eligible:      scored.Eligible,
				Reasons:       scored.Reasons,
				Suggestions:   scored.Suggestions,
				MatchReasons:  scored.MatchReasons,
			}
			if err := s.store.UpsertMatch(ctx, m); err != nil {
				return nil, fmt.Errorf("saving match for %s: %w", opp.ID, err)
			}
			kept = append(kept, m)
		}

		if len(opps) < candidatePage {
			break
		}
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Score > kept[j].Score })
	if len(kept) > limit {
		kept = kept[:limit]
	}

	s.log.Info("matches recomputed",
		zap.String("profile_id", profileID),
		zap.Int("candidates", scanned),
		zap.Int("retained", len(kept)),
		zap.Float64("min_score", minScore))
	return kept, nil
}

// TopMatches returns the stored best matches for a profile, newest scores
// first. Dismissed matches never surface.
func (s *Service) TopMatches(ctx context.Context, profileID string, limit int) ([]model.Match, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > MaxTopMatches {
		limit = MaxTopMatches
	}
	return s.store.TopMatches(ctx, profileID, limit)
}
