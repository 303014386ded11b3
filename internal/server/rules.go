package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	ruledomain "github.com/repwell/repwell/internal/rule/domain"
	"github.com/shopspring/decimal"
)

type createRuleRequest struct {
	TargetType     string           `json:"target_type"`
	TargetID       string           `json:"target_id"`
	OrganizationID string           `json:"organization_id"`
	TopLevelRate   *decimal.Decimal `json:"top_level_rate"`
	SubRepRate     *decimal.Decimal `json:"sub_rep_rate"`
	ValidFrom      *time.Time       `json:"valid_from"`
	ValidTo        *time.Time       `json:"valid_to"`
	Description    string           `json:"description"`
}

func (s *Server) CreateCommissionRule(c *gin.Context) {
	var req createRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	orgID, err := parseOptionalSnowflakeID(req.OrganizationID)
	if err != nil {
		AbortWithError(c, newValidationError("organization_id", "invalid_organization_id", "invalid organization id"))
		return
	}

	resp, err := s.ruleSvc.Create(c.Request.Context(), ruledomain.CreateRuleRequest{
		TargetType:     ruledomain.TargetType(strings.TrimSpace(req.TargetType)),
		TargetID:       strings.TrimSpace(req.TargetID),
		OrganizationID: orgID,
		TopLevelRate:   req.TopLevelRate,
		SubRepRate:     req.SubRepRate,
		ValidFrom:      req.ValidFrom,
		ValidTo:        req.ValidTo,
		Description:    strings.TrimSpace(req.Description),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updateRuleRequest struct {
	TopLevelRate *decimal.Decimal `json:"top_level_rate"`
	SubRepRate   *decimal.Decimal `json:"sub_rep_rate"`
	ValidTo      *time.Time       `json:"valid_to"`
	Description  *string          `json:"description"`
}

func (s *Server) UpdateCommissionRule(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	var req updateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.ruleSvc.Update(c.Request.Context(), ruledomain.UpdateRuleRequest{
		ID:           id,
		TopLevelRate: req.TopLevelRate,
		SubRepRate:   req.SubRepRate,
		ValidTo:      req.ValidTo,
		Description:  req.Description,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeactivateCommissionRule(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	resp, err := s.ruleSvc.Deactivate(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetCommissionRuleByID(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	resp, err := s.ruleSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListCommissionRules(c *gin.Context) {
	var query struct {
		TargetType     string `form:"target_type"`
		TargetID       string `form:"target_id"`
		OrganizationID string `form:"organization_id"`
		ActiveOnly     string `form:"active_only"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	orgID, err := parseOptionalSnowflakeID(query.OrganizationID)
	if err != nil {
		AbortWithError(c, newValidationError("organization_id", "invalid_organization_id", "invalid organization id"))
		return
	}
	activeOnly, err := parseOptionalBool(query.ActiveOnly)
	if err != nil {
		AbortWithError(c, newValidationError("active_only", "invalid_active_only", "invalid active_only"))
		return
	}

	resp, err := s.ruleSvc.List(c.Request.Context(), ruledomain.ListRulesRequest{
		TargetType:     strings.TrimSpace(query.TargetType),
		TargetID:       strings.TrimSpace(query.TargetID),
		OrganizationID: orgID,
		ActiveOnly:     activeOnly != nil && *activeOnly,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
