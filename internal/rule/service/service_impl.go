package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/repwell/repwell/internal/audit/domain"
	"github.com/repwell/repwell/internal/clock"
	"github.com/repwell/repwell/internal/rule/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	AuditSvc auditdomain.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	auditSvc auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("rule.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		auditSvc: p.AuditSvc,
	}
}

var hundred = decimal.NewFromInt(100)

func validRate(rate *decimal.Decimal) bool {
	if rate == nil {
		return true
	}
	return !rate.IsNegative() && rate.LessThanOrEqual(hundred)
}

func toNullDecimal(rate *decimal.Decimal) decimal.NullDecimal {
	if rate == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *rate, Valid: true}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRuleRequest) (domain.CommissionRule, error) {
	if !req.TargetType.Valid() {
		return domain.CommissionRule{}, domain.ErrInvalidTargetType
	}
	targetID := strings.TrimSpace(req.TargetID)
	if targetID == "" {
		return domain.CommissionRule{}, domain.ErrInvalidTargetID
	}
	if !validRate(req.TopLevelRate) || !validRate(req.SubRepRate) {
		return domain.CommissionRule{}, domain.ErrInvalidRate
	}
	// A rule may define only one tier, but a rule with neither tier
	// can never pay anything.
	if req.TopLevelRate == nil && req.SubRepRate == nil {
		return domain.CommissionRule{}, domain.ErrInvalidRate
	}

	now := s.clock.Now()
	validFrom := now
	if req.ValidFrom != nil {
		validFrom = req.ValidFrom.UTC()
	}
	if req.ValidTo != nil && req.ValidTo.Before(validFrom) {
		return domain.CommissionRule{}, domain.ErrInvalidValidity
	}

	rule := domain.CommissionRule{
		ID:             s.genID.Generate(),
		TargetType:     req.TargetType,
		TargetID:       targetID,
		OrganizationID: req.OrganizationID,
		TopLevelRate:   toNullDecimal(req.TopLevelRate),
		SubRepRate:     toNullDecimal(req.SubRepRate),
		ValidFrom:      validFrom,
		ValidTo:        req.ValidTo,
		IsActive:       true,
		Description:    strings.TrimSpace(req.Description),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Insert(ctx, s.db, &rule); err != nil {
		return domain.CommissionRule{}, err
	}
	return rule, nil
}

// Update rejects edits to a rule that has already produced records.
// Such rules are append-only: deactivate and create a successor instead,
// so historical records keep resolving to the version that priced them.
func (s *Service) Update(ctx context.Context, req domain.UpdateRuleRequest) (domain.CommissionRule, error) {
	if req.ID == 0 {
		return domain.CommissionRule{}, domain.ErrInvalidID
	}
	if !validRate(req.TopLevelRate) || !validRate(req.SubRepRate) {
		return domain.CommissionRule{}, domain.ErrInvalidRate
	}

	rule, err := s.repo.FindByID(ctx, s.db, req.ID)
	if err != nil {
		return domain.CommissionRule{}, err
	}
	if rule == nil {
		return domain.CommissionRule{}, domain.ErrNotFound
	}

	refs, err := s.repo.CountReferences(ctx, s.db, rule.ID)
	if err != nil {
		return domain.CommissionRule{}, err
	}
	if refs > 0 {
		return domain.CommissionRule{}, domain.ErrRuleReferenced
	}

	if req.TopLevelRate != nil {
		rule.TopLevelRate = toNullDecimal(req.TopLevelRate)
	}
	if req.SubRepRate != nil {
		rule.SubRepRate = toNullDecimal(req.SubRepRate)
	}
	if req.ValidTo != nil {
		if req.ValidTo.Before(rule.ValidFrom) {
			return domain.CommissionRule{}, domain.ErrInvalidValidity
		}
		rule.ValidTo = req.ValidTo
	}
	if req.Description != nil {
		rule.Description = strings.TrimSpace(*req.Description)
	}
	rule.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, s.db, rule); err != nil {
		return domain.CommissionRule{}, err
	}
	return *rule, nil
}

// Deactivate is the only removal surface. Rules referenced by records
// are never physically deleted.
func (s *Service) Deactivate(ctx context.Context, id snowflake.ID) (domain.CommissionRule, error) {
	if id == 0 {
		return domain.CommissionRule{}, domain.ErrInvalidID
	}

	rule, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.CommissionRule{}, err
	}
	if rule == nil {
		return domain.CommissionRule{}, domain.ErrNotFound
	}
	if !rule.IsActive {
		return *rule, nil
	}

	rule.IsActive = false
	rule.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, rule); err != nil {
		return domain.CommissionRule{}, err
	}
	return *rule, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (domain.CommissionRule, error) {
	if id == 0 {
		return domain.CommissionRule{}, domain.ErrInvalidID
	}
	rule, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.CommissionRule{}, err
	}
	if rule == nil {
		return domain.CommissionRule{}, domain.ErrNotFound
	}
	return *rule, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRulesRequest) ([]domain.CommissionRule, error) {
	filter := domain.ListFilter{
		TargetID:       strings.TrimSpace(req.TargetID),
		OrganizationID: req.OrganizationID,
		ActiveOnly:     req.ActiveOnly,
	}
	if raw := strings.TrimSpace(req.TargetType); raw != "" {
		targetType := domain.TargetType(raw)
		if !targetType.Valid() {
			return nil, domain.ErrInvalidTargetType
		}
		filter.TargetType = targetType
	}
	return s.repo.List(ctx, s.db, filter)
}
