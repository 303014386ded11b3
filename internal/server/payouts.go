package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	payoutdomain "github.com/repwell/repwell/internal/payout/domain"
)

type generatePayoutsRequest struct {
	RepID       string     `json:"rep_id"`
	PeriodStart *time.Time `json:"period_start"`
	PeriodEnd   *time.Time `json:"period_end"`
}

func (s *Server) GenerateCommissionPayouts(c *gin.Context) {
	var req generatePayoutsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	generate := payoutdomain.GenerateRequest{}
	if req.PeriodStart != nil {
		generate.PeriodStart = *req.PeriodStart
	}
	if req.PeriodEnd != nil {
		generate.PeriodEnd = *req.PeriodEnd
	}

	if strings.TrimSpace(req.RepID) != "" {
		repID, err := parseSnowflakeID(req.RepID)
		if err != nil {
			AbortWithError(c, newValidationError("rep_id", "invalid_rep_id", "invalid rep id"))
			return
		}
		payout, err := s.payoutSvc.GenerateForRep(c.Request.Context(), repID, generate)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		payouts := []payoutdomain.CommissionPayout{}
		if payout != nil {
			payouts = append(payouts, *payout)
		}
		c.JSON(http.StatusOK, gin.H{"data": payouts})
		return
	}

	payouts, err := s.payoutSvc.Generate(c.Request.Context(), generate)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": payouts})
}

type approvePayoutRequest struct {
	ApproverID string `json:"approver_id"`
}

func (s *Server) ApproveCommissionPayout(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	var req approvePayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	approverID, err := parseSnowflakeID(req.ApproverID)
	if err != nil {
		AbortWithError(c, newValidationError("approver_id", "invalid_approver", "invalid approver id"))
		return
	}

	resp, err := s.payoutSvc.Approve(c.Request.Context(), payoutdomain.ApproveRequest{
		PayoutID:   id,
		ApproverID: approverID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type processPayoutRequest struct {
	PaymentReference string `json:"payment_reference"`
}

func (s *Server) ProcessCommissionPayout(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	var req processPayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.payoutSvc.Process(c.Request.Context(), payoutdomain.ProcessRequest{
		PayoutID:         id,
		PaymentReference: req.PaymentReference,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetCommissionPayoutByID(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	resp, err := s.payoutSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListCommissionPayouts(c *gin.Context) {
	var query struct {
		RepID  string `form:"rep_id"`
		Status string `form:"status"`
		From   string `form:"from"`
		To     string `form:"to"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	repID, err := parseOptionalSnowflakeID(query.RepID)
	if err != nil {
		AbortWithError(c, newValidationError("rep_id", "invalid_rep_id", "invalid rep id"))
		return
	}
	from, err := parseOptionalTime(query.From, false)
	if err != nil {
		AbortWithError(c, newValidationError("from", "invalid_from", "invalid from"))
		return
	}
	to, err := parseOptionalTime(query.To, true)
	if err != nil {
		AbortWithError(c, newValidationError("to", "invalid_to", "invalid to"))
		return
	}

	resp, err := s.payoutSvc.List(c.Request.Context(), payoutdomain.ListRequest{
		RepID:  repID,
		Status: strings.TrimSpace(query.Status),
		From:   from,
		To:     to,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
