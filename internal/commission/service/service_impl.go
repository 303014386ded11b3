package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/repwell/repwell/internal/audit/domain"
	"github.com/repwell/repwell/internal/clock"
	"github.com/repwell/repwell/internal/commission/domain"
	obsmetrics "github.com/repwell/repwell/internal/observability/metrics"
	ruledomain "github.com/repwell/repwell/internal/rule/domain"
	"github.com/repwell/repwell/pkg/db"
	"github.com/repwell/repwell/pkg/db/pagination"
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
	RuleSvc  ruledomain.Service
	AuditSvc auditdomain.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	ruleSvc  ruledomain.Service
	auditSvc auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("commission.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		ruleSvc:  p.RuleSvc,
		auditSvc: p.AuditSvc,
	}
}

const reviewNote = "flagged for review: non-positive base amount"

func tierToType(tier ruledomain.MatchTier) domain.CommissionType {
	switch tier {
	case ruledomain.MatchProduct:
		return domain.TypeProduct
	case ruledomain.MatchCategory:
		return domain.TypeCategory
	case ruledomain.MatchManufacturer:
		return domain.TypeManufacturer
	default:
		return domain.TypeUnmatched
	}
}

func (s *Service) Calculate(ctx context.Context, req domain.CalculateRequest) ([]domain.CommissionRecord, error) {
	item := req.OrderItem
	rep := req.Representative
	if item.ID == 0 || item.OrderID == 0 {
		return nil, domain.ErrInvalidOrderItem
	}
	if rep.ID == 0 || !rep.Type.Valid() {
		return nil, domain.ErrInvalidRep
	}

	now := s.clock.Now()
	resolution, err := s.ruleSvc.Resolve(ctx, req.Product, rep, now)
	if err != nil {
		return nil, err
	}

	var ruleID *snowflake.ID
	if resolution.Rule != nil {
		id := resolution.Rule.ID
		ruleID = &id
	}

	// Zero and negative totals are still calculated (credits, refunds)
	// but flagged so they surface in review queues.
	notes := ""
	flagged := !item.TotalAmount.IsPositive()
	if flagged {
		notes = reviewNote
	}

	base := item.TotalAmount.Round(2)
	rate := ruledomain.RateFor(resolution.Rule, rep.Type)

	records := []domain.CommissionRecord{{
		ID:               s.genID.Generate(),
		OrderID:          item.OrderID,
		OrderItemID:      item.ID,
		RepID:            rep.ID,
		ParentRepID:      rep.ParentRepID,
		CommissionRuleID: ruleID,
		CommissionType:   tierToType(resolution.Tier),
		BaseAmount:       base,
		CommissionRate:   rate,
		CommissionAmount: domain.Amount(base, rate),
		Status:           domain.StatusPending,
		CalculationDate:  now,
		Notes:            notes,
		CreatedAt:        now,
		UpdatedAt:        now,
	}}

	// The parent's share is computed from the same resolved rule, not a
	// fresh resolution, against the same base. One parent hop only: the
	// parent record is a top-level obligation with no parent of its own.
	if rep.Type == ruledomain.RepTypeSubRep && rep.ParentRepID != nil {
		parentRate := ruledomain.RateFor(resolution.Rule, ruledomain.RepTypeTopLevel)
		records = append(records, domain.CommissionRecord{
			ID:               s.genID.Generate(),
			OrderID:          item.OrderID,
			OrderItemID:      item.ID,
			RepID:            *rep.ParentRepID,
			CommissionRuleID: ruleID,
			CommissionType:   domain.TypeSubRep,
			BaseAmount:       base,
			CommissionRate:   parentRate,
			CommissionAmount: domain.Amount(base, parentRate),
			Status:           domain.StatusPending,
			CalculationDate:  now,
			Notes:            notes,
			CreatedAt:        now,
			UpdatedAt:        now,
		})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range records {
			if err := s.repo.Insert(ctx, tx, &records[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrAlreadyCalculated
		}
		return nil, err
	}

	for _, record := range records {
		obsmetrics.IncRecordCalculated(string(record.CommissionType))
	}
	if flagged {
		s.auditFlaggedCalculation(ctx, records[0])
	}

	return records, nil
}

func (s *Service) auditFlaggedCalculation(ctx context.Context, record domain.CommissionRecord) {
	if err := s.auditSvc.Record(ctx, auditdomain.Entry{
		ActorID:    auditdomain.ActorSystem,
		Action:     "commission_record.flagged_for_review",
		TargetType: "commission_record",
		TargetID:   record.ID.String(),
		Metadata: map[string]any{
			"order_item_id": record.OrderItemID.String(),
			"base_amount":   record.BaseAmount.String(),
		},
	}); err != nil {
		s.log.Warn("failed to audit flagged calculation", zap.Error(err))
	}
}

// Approve transitions a pending record to approved. Re-approving an
// already-approved record is a no-op success so approval actions can be
// retried safely; it never writes a second audit entry.
func (s *Service) Approve(ctx context.Context, req domain.ApproveRequest) (domain.CommissionRecord, error) {
	if req.RecordID == 0 {
		return domain.CommissionRecord{}, domain.ErrInvalidID
	}
	if req.ApproverID == 0 {
		return domain.CommissionRecord{}, domain.ErrInvalidApprover
	}

	record, err := s.repo.FindByID(ctx, s.db, req.RecordID)
	if err != nil {
		return domain.CommissionRecord{}, err
	}
	if record == nil {
		return domain.CommissionRecord{}, domain.ErrNotFound
	}

	switch record.Status {
	case domain.StatusApproved:
		return *record, nil
	case domain.StatusPaid:
		return domain.CommissionRecord{}, domain.ErrInvalidTransition
	}

	now := s.clock.Now()
	notes := strings.TrimSpace(req.Notes)
	updated, err := s.repo.ApproveConditional(ctx, s.db, req.RecordID, req.ApproverID, notes, now)
	if err != nil {
		return domain.CommissionRecord{}, err
	}

	record, err = s.repo.FindByID(ctx, s.db, req.RecordID)
	if err != nil {
		return domain.CommissionRecord{}, err
	}
	if record == nil {
		return domain.CommissionRecord{}, domain.ErrNotFound
	}

	if updated == 0 {
		// Lost a race: idempotent success if the winner approved it,
		// otherwise the record moved somewhere approval cannot follow.
		if record.Status == domain.StatusApproved {
			return *record, nil
		}
		return domain.CommissionRecord{}, domain.ErrInvalidTransition
	}

	if err := s.auditSvc.Record(ctx, auditdomain.Entry{
		ActorID:    req.ApproverID.String(),
		Action:     "commission_record.approved",
		TargetType: "commission_record",
		TargetID:   record.ID.String(),
		Metadata: map[string]any{
			"notes": notes,
		},
	}); err != nil {
		s.log.Warn("failed to audit record approval", zap.Error(err))
	}

	return *record, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (domain.CommissionRecord, error) {
	if id == 0 {
		return domain.CommissionRecord{}, domain.ErrInvalidID
	}
	record, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.CommissionRecord{}, err
	}
	if record == nil {
		return domain.CommissionRecord{}, domain.ErrNotFound
	}
	return *record, nil
}

func (s *Service) filterFrom(req domain.ListRequest) (domain.ListFilter, error) {
	filter := domain.ListFilter{
		RepID:  req.RepID,
		From:   req.From,
		To:     req.To,
		Search: strings.TrimSpace(req.Search),
	}
	if raw := strings.TrimSpace(req.Status); raw != "" {
		status := domain.RecordStatus(raw)
		switch status {
		case domain.StatusPending, domain.StatusApproved, domain.StatusPaid:
			filter.Status = status
		default:
			return domain.ListFilter{}, domain.ErrInvalidStatus
		}
	}
	return filter, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	filter, err := s.filterFrom(req)
	if err != nil {
		return domain.ListResponse{}, err
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.List(ctx, s.db, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  pageSize,
	})
	if err != nil {
		return domain.ListResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(record *domain.CommissionRecord) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID: record.ID.String(),
			At: record.CalculationDate.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	records := make([]domain.CommissionRecord, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		records = append(records, *item)
	}

	resp := domain.ListResponse{Records: records}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) Summary(ctx context.Context, req domain.ListRequest) (domain.Summary, error) {
	filter, err := s.filterFrom(req)
	if err != nil {
		return domain.Summary{}, err
	}
	return s.repo.Summary(ctx, s.db, filter)
}
