package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/repwell/repwell/internal/audit"
	auditdomain "github.com/repwell/repwell/internal/audit/domain"
	"github.com/repwell/repwell/internal/commission"
	commissiondomain "github.com/repwell/repwell/internal/commission/domain"
	"github.com/repwell/repwell/internal/config"
	"github.com/repwell/repwell/internal/payout"
	payoutdomain "github.com/repwell/repwell/internal/payout/domain"
	"github.com/repwell/repwell/internal/rule"
	ruledomain "github.com/repwell/repwell/internal/rule/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	audit.Module,
	rule.Module,
	commission.Module,
	payout.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log.Named("http")))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger) *gin.Engine {
	return NewEngine(log)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	db            *gorm.DB
	genID         *snowflake.Node
	auditSvc      auditdomain.Service
	ruleSvc       ruledomain.Service
	commissionSvc commissiondomain.Service
	payoutSvc     payoutdomain.Service
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	DB            *gorm.DB
	GenID         *snowflake.Node
	AuditSvc      auditdomain.Service
	RuleSvc       ruledomain.Service
	CommissionSvc commissiondomain.Service
	PayoutSvc     payoutdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		db:            p.DB,
		genID:         p.GenID,
		auditSvc:      p.AuditSvc,
		ruleSvc:       p.RuleSvc,
		commissionSvc: p.CommissionSvc,
		payoutSvc:     p.PayoutSvc,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1")

	// -------- Commission rules --------
	v1.POST("/commission-rules", s.CreateCommissionRule)
	v1.GET("/commission-rules", s.ListCommissionRules)
	v1.GET("/commission-rules/:id", s.GetCommissionRuleByID)
	v1.PUT("/commission-rules/:id", s.UpdateCommissionRule)
	v1.POST("/commission-rules/:id/deactivate", s.DeactivateCommissionRule)

	// -------- Commission records --------
	v1.POST("/commission-records/calculate", s.CalculateCommission)
	v1.GET("/commission-records", s.ListCommissionRecords)
	v1.GET("/commission-records/summary", s.CommissionSummary)
	v1.GET("/commission-records/:id", s.GetCommissionRecordByID)
	v1.POST("/commission-records/:id/approve", s.ApproveCommissionRecord)

	// -------- Commission payouts --------
	v1.POST("/commission-payouts/generate", s.GenerateCommissionPayouts)
	v1.GET("/commission-payouts", s.ListCommissionPayouts)
	v1.GET("/commission-payouts/:id", s.GetCommissionPayoutByID)
	v1.POST("/commission-payouts/:id/approve", s.ApproveCommissionPayout)
	v1.POST("/commission-payouts/:id/process", s.ProcessCommissionPayout)
}
