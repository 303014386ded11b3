package service

import (
	"context"
	"time"

	auditdomain "github.com/repwell/repwell/internal/audit/domain"
	obsmetrics "github.com/repwell/repwell/internal/observability/metrics"
	"github.com/repwell/repwell/internal/rule/domain"
	"go.uber.org/zap"
)

// precedence is the fixed resolution order: specificity (product >
// category > manufacturer) dominates scope, and within a tier an
// organization override beats the global rule.
var precedence = []struct {
	target domain.TargetType
	tier   domain.MatchTier
}{
	{domain.TargetProduct, domain.MatchProduct},
	{domain.TargetCategory, domain.MatchCategory},
	{domain.TargetManufacturer, domain.MatchManufacturer},
}

func (s *Service) Resolve(ctx context.Context, product domain.Product, rep domain.Representative, asOf time.Time) (domain.Resolution, error) {
	if asOf.IsZero() {
		asOf = s.clock.Now()
	}

	candidates, err := s.repo.FindCandidates(ctx, s.db, domain.CandidateQuery{
		ProductID:      product.ID,
		Category:       product.Category,
		ManufacturerID: product.ManufacturerID,
		OrganizationID: rep.OrganizationID,
		AsOf:           asOf,
	})
	if err != nil {
		return domain.Resolution{}, err
	}

	for _, step := range precedence {
		targetID := targetIDFor(step.target, product)
		if targetID == "" {
			continue
		}
		if rep.OrganizationID != nil {
			if rule := s.pickScoped(ctx, candidates, step.target, targetID, false); rule != nil {
				return domain.Resolution{Rule: rule, Tier: step.tier}, nil
			}
		}
		if rule := s.pickScoped(ctx, candidates, step.target, targetID, true); rule != nil {
			return domain.Resolution{Rule: rule, Tier: step.tier}, nil
		}
	}

	return domain.Resolution{Tier: domain.MatchNone}, nil
}

func targetIDFor(target domain.TargetType, product domain.Product) string {
	switch target {
	case domain.TargetProduct:
		return product.ID
	case domain.TargetCategory:
		return product.Category
	case domain.TargetManufacturer:
		return product.ManufacturerID
	}
	return ""
}

// pickScoped selects the rule for one (target_type, target_id, scope)
// combination. At most one active, time-valid rule should exist per
// combination; when the store returns more the pick is deterministic
// (latest valid_from, then highest id) and the anomaly is reported.
func (s *Service) pickScoped(ctx context.Context, candidates []domain.CommissionRule, target domain.TargetType, targetID string, global bool) *domain.CommissionRule {
	var matched []domain.CommissionRule
	for _, rule := range candidates {
		if rule.TargetType != target || rule.TargetID != targetID {
			continue
		}
		if global != (rule.OrganizationID == nil) {
			continue
		}
		matched = append(matched, rule)
	}
	if len(matched) == 0 {
		return nil
	}

	best := matched[0]
	for _, rule := range matched[1:] {
		if rule.ValidFrom.After(best.ValidFrom) ||
			(rule.ValidFrom.Equal(best.ValidFrom) && rule.ID > best.ID) {
			best = rule
		}
	}

	if len(matched) > 1 {
		s.reportAmbiguity(ctx, target, targetID, global, len(matched), best.ID.String())
	}
	return &best
}

func (s *Service) reportAmbiguity(ctx context.Context, target domain.TargetType, targetID string, global bool, count int, pickedID string) {
	obsmetrics.IncResolutionAmbiguity()
	s.log.Warn("ambiguous commission rule scope",
		zap.String("target_type", string(target)),
		zap.String("target_id", targetID),
		zap.Bool("global", global),
		zap.Int("candidates", count),
		zap.String("picked_rule_id", pickedID),
	)
	if err := s.auditSvc.Record(ctx, auditdomain.Entry{
		ActorID:    auditdomain.ActorSystem,
		Action:     "commission_rule.resolution_ambiguity",
		TargetType: "commission_rule",
		TargetID:   pickedID,
		Metadata: map[string]any{
			"target_type": string(target),
			"target_id":   targetID,
			"global":      global,
			"candidates":  count,
		},
	}); err != nil {
		s.log.Warn("failed to audit resolution ambiguity", zap.Error(err))
	}
}
