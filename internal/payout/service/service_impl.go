package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	auditdomain "github.com/repwell/repwell/internal/audit/domain"
	"github.com/repwell/repwell/internal/clock"
	obsmetrics "github.com/repwell/repwell/internal/observability/metrics"
	"github.com/repwell/repwell/internal/payout/domain"
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
		log:      p.Log.Named("payout.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) Generate(ctx context.Context, req domain.GenerateRequest) ([]domain.CommissionPayout, error) {
	if err := validPeriod(req); err != nil {
		return nil, err
	}

	repIDs, err := s.repo.RepsWithClaimable(ctx, s.db, req.PeriodStart, req.PeriodEnd)
	if err != nil {
		return nil, err
	}

	payouts := make([]domain.CommissionPayout, 0, len(repIDs))
	for _, repID := range repIDs {
		payout, err := s.GenerateForRep(ctx, repID, req)
		if err != nil {
			// A lost claim only affects this representative; keep
			// batching the rest and let the next run retry.
			s.log.Warn("payout generation failed for representative",
				zap.String("rep_id", repID.String()),
				zap.Error(err),
			)
			continue
		}
		if payout != nil {
			payouts = append(payouts, *payout)
		}
	}
	return payouts, nil
}

// GenerateForRep claims every approved, unclaimed record for one
// representative inside a single transaction: lock, freeze the total,
// insert the payout, then conditionally flip the records to paid. A
// short claim means a concurrent run won some records; the whole payout
// rolls back rather than paying a partial batch.
func (s *Service) GenerateForRep(ctx context.Context, repID snowflake.ID, req domain.GenerateRequest) (*domain.CommissionPayout, error) {
	if repID == 0 {
		return nil, domain.ErrInvalidID
	}
	if err := validPeriod(req); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var payout *domain.CommissionPayout

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		records, err := s.repo.ClaimableForRep(ctx, tx, repID, req.PeriodStart, req.PeriodEnd)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}

		total := decimal.Zero
		recordIDs := make([]snowflake.ID, 0, len(records))
		for _, record := range records {
			total = total.Add(record.CommissionAmount)
			recordIDs = append(recordIDs, record.ID)
		}

		candidate := domain.CommissionPayout{
			ID:          s.genID.Generate(),
			RepID:       repID,
			BatchNumber: uuid.NewString(),
			PeriodStart: req.PeriodStart,
			PeriodEnd:   req.PeriodEnd,
			TotalAmount: total,
			RecordCount: int64(len(records)),
			Status:      domain.StatusCalculated,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.repo.Insert(ctx, tx, &candidate); err != nil {
			return err
		}

		claimed, err := s.repo.ClaimRecords(ctx, tx, candidate.ID, recordIDs, now)
		if err != nil {
			return err
		}
		if claimed != int64(len(recordIDs)) {
			obsmetrics.IncClaimConflict()
			return domain.ErrClaimConflict
		}

		payout = &candidate
		return nil
	})
	if err != nil {
		return nil, err
	}
	if payout == nil {
		return nil, nil
	}

	obsmetrics.IncPayoutGenerated()
	if err := s.auditSvc.Record(ctx, auditdomain.Entry{
		ActorID:    auditdomain.ActorSystem,
		Action:     "commission_payout.generated",
		TargetType: "commission_payout",
		TargetID:   payout.ID.String(),
		Metadata: map[string]any{
			"rep_id":       payout.RepID.String(),
			"batch_number": payout.BatchNumber,
			"total_amount": payout.TotalAmount.String(),
			"record_count": payout.RecordCount,
		},
	}); err != nil {
		s.log.Warn("failed to audit payout generation", zap.Error(err))
	}

	return payout, nil
}

func (s *Service) Approve(ctx context.Context, req domain.ApproveRequest) (domain.CommissionPayout, error) {
	if req.PayoutID == 0 {
		return domain.CommissionPayout{}, domain.ErrInvalidID
	}
	if req.ApproverID == 0 {
		return domain.CommissionPayout{}, domain.ErrInvalidApprover
	}

	now := s.clock.Now()
	updated, err := s.repo.ApproveConditional(ctx, s.db, req.PayoutID, req.ApproverID, now)
	if err != nil {
		return domain.CommissionPayout{}, err
	}

	payout, err := s.repo.FindByID(ctx, s.db, req.PayoutID)
	if err != nil {
		return domain.CommissionPayout{}, err
	}
	if payout == nil {
		return domain.CommissionPayout{}, domain.ErrNotFound
	}
	if updated == 0 {
		return domain.CommissionPayout{}, domain.ErrNotCalculated
	}

	if err := s.auditSvc.Record(ctx, auditdomain.Entry{
		ActorID:    req.ApproverID.String(),
		Action:     "commission_payout.approved",
		TargetType: "commission_payout",
		TargetID:   payout.ID.String(),
	}); err != nil {
		s.log.Warn("failed to audit payout approval", zap.Error(err))
	}

	return *payout, nil
}

func (s *Service) Process(ctx context.Context, req domain.ProcessRequest) (domain.CommissionPayout, error) {
	if req.PayoutID == 0 {
		return domain.CommissionPayout{}, domain.ErrInvalidID
	}
	reference := strings.TrimSpace(req.PaymentReference)
	if reference == "" {
		return domain.CommissionPayout{}, domain.ErrMissingPaymentReference
	}

	now := s.clock.Now()
	updated, err := s.repo.ProcessConditional(ctx, s.db, req.PayoutID, reference, now)
	if err != nil {
		return domain.CommissionPayout{}, err
	}

	payout, err := s.repo.FindByID(ctx, s.db, req.PayoutID)
	if err != nil {
		return domain.CommissionPayout{}, err
	}
	if payout == nil {
		return domain.CommissionPayout{}, domain.ErrNotFound
	}
	if updated == 0 {
		if payout.Status == domain.StatusProcessed {
			return domain.CommissionPayout{}, domain.ErrAlreadyProcessed
		}
		return domain.CommissionPayout{}, domain.ErrNotApproved
	}

	if err := s.auditSvc.Record(ctx, auditdomain.Entry{
		ActorID:    auditdomain.ActorSystem,
		Action:     "commission_payout.processed",
		TargetType: "commission_payout",
		TargetID:   payout.ID.String(),
		Metadata: map[string]any{
			"payment_reference": reference,
		},
	}); err != nil {
		s.log.Warn("failed to audit payout processing", zap.Error(err))
	}

	return *payout, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (domain.Detail, error) {
	if id == 0 {
		return domain.Detail{}, domain.ErrInvalidID
	}

	payout, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Detail{}, err
	}
	if payout == nil {
		return domain.Detail{}, domain.ErrNotFound
	}

	records, err := s.repo.RecordsForPayout(ctx, s.db, id)
	if err != nil {
		return domain.Detail{}, err
	}

	return domain.Detail{Payout: *payout, Records: records}, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.CommissionPayout, error) {
	filter := domain.ListFilter{
		RepID: req.RepID,
		From:  req.From,
		To:    req.To,
	}
	if raw := strings.TrimSpace(req.Status); raw != "" {
		status := domain.PayoutStatus(raw)
		switch status {
		case domain.StatusCalculated, domain.StatusApproved, domain.StatusProcessed:
			filter.Status = status
		default:
			return nil, domain.ErrInvalidStatus
		}
	}
	return s.repo.List(ctx, s.db, filter)
}

func validPeriod(req domain.GenerateRequest) error {
	if req.PeriodEnd.IsZero() {
		return domain.ErrInvalidPeriod
	}
	if !req.PeriodStart.IsZero() && req.PeriodEnd.Before(req.PeriodStart) {
		return domain.ErrInvalidPeriod
	}
	return nil
}
