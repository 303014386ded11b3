package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	commissiondomain "github.com/repwell/repwell/internal/commission/domain"
	ruledomain "github.com/repwell/repwell/internal/rule/domain"
	"github.com/repwell/repwell/pkg/db/pagination"
	"github.com/shopspring/decimal"
)

type calculateCommissionRequest struct {
	OrderItem struct {
		ID          string          `json:"id"`
		OrderID     string          `json:"order_id"`
		ProductID   string          `json:"product_id"`
		Quantity    int64           `json:"quantity"`
		UnitPrice   decimal.Decimal `json:"unit_price"`
		TotalAmount decimal.Decimal `json:"total_amount"`
	} `json:"order_item"`
	Product struct {
		ID             string `json:"id"`
		Category       string `json:"category"`
		ManufacturerID string `json:"manufacturer_id"`
	} `json:"product"`
	Representative struct {
		ID             string `json:"id"`
		Type           string `json:"type"`
		ParentRepID    string `json:"parent_rep_id"`
		OrganizationID string `json:"organization_id"`
	} `json:"representative"`
}

func (s *Server) CalculateCommission(c *gin.Context) {
	var req calculateCommissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	itemID, err := parseSnowflakeID(req.OrderItem.ID)
	if err != nil {
		AbortWithError(c, newValidationError("order_item.id", "invalid_order_item", "invalid order item id"))
		return
	}
	orderID, err := parseSnowflakeID(req.OrderItem.OrderID)
	if err != nil {
		AbortWithError(c, newValidationError("order_item.order_id", "invalid_order_item", "invalid order id"))
		return
	}
	repID, err := parseSnowflakeID(req.Representative.ID)
	if err != nil {
		AbortWithError(c, newValidationError("representative.id", "invalid_representative", "invalid representative id"))
		return
	}
	parentRepID, err := parseOptionalSnowflakeID(req.Representative.ParentRepID)
	if err != nil {
		AbortWithError(c, newValidationError("representative.parent_rep_id", "invalid_representative", "invalid parent representative id"))
		return
	}
	orgID, err := parseOptionalSnowflakeID(req.Representative.OrganizationID)
	if err != nil {
		AbortWithError(c, newValidationError("representative.organization_id", "invalid_representative", "invalid organization id"))
		return
	}

	resp, err := s.commissionSvc.Calculate(c.Request.Context(), commissiondomain.CalculateRequest{
		OrderItem: commissiondomain.OrderItem{
			ID:          itemID,
			OrderID:     orderID,
			ProductID:   strings.TrimSpace(req.OrderItem.ProductID),
			Quantity:    req.OrderItem.Quantity,
			UnitPrice:   req.OrderItem.UnitPrice,
			TotalAmount: req.OrderItem.TotalAmount,
		},
		Product: ruledomain.Product{
			ID:             strings.TrimSpace(req.Product.ID),
			Category:       strings.TrimSpace(req.Product.Category),
			ManufacturerID: strings.TrimSpace(req.Product.ManufacturerID),
		},
		Representative: ruledomain.Representative{
			ID:             repID,
			Type:           ruledomain.RepType(strings.TrimSpace(req.Representative.Type)),
			ParentRepID:    parentRepID,
			OrganizationID: orgID,
		},
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type approveRecordRequest struct {
	ApproverID string `json:"approver_id"`
	Notes      string `json:"notes"`
}

func (s *Server) ApproveCommissionRecord(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	var req approveRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	approverID, err := parseSnowflakeID(req.ApproverID)
	if err != nil {
		AbortWithError(c, newValidationError("approver_id", "invalid_approver", "invalid approver id"))
		return
	}

	resp, err := s.commissionSvc.Approve(c.Request.Context(), commissiondomain.ApproveRequest{
		RecordID:   id,
		ApproverID: approverID,
		Notes:      strings.TrimSpace(req.Notes),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetCommissionRecordByID(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	resp, err := s.commissionSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type listRecordsQuery struct {
	pagination.Pagination
	Status string `form:"status"`
	RepID  string `form:"rep_id"`
	From   string `form:"from"`
	To     string `form:"to"`
	Search string `form:"search"`
}

func (s *Server) bindListRecordsRequest(c *gin.Context) (commissiondomain.ListRequest, bool) {
	var query listRecordsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return commissiondomain.ListRequest{}, false
	}

	repID, err := parseOptionalSnowflakeID(query.RepID)
	if err != nil {
		AbortWithError(c, newValidationError("rep_id", "invalid_rep_id", "invalid rep id"))
		return commissiondomain.ListRequest{}, false
	}
	from, err := parseOptionalTime(query.From, false)
	if err != nil {
		AbortWithError(c, newValidationError("from", "invalid_from", "invalid from"))
		return commissiondomain.ListRequest{}, false
	}
	to, err := parseOptionalTime(query.To, true)
	if err != nil {
		AbortWithError(c, newValidationError("to", "invalid_to", "invalid to"))
		return commissiondomain.ListRequest{}, false
	}

	return commissiondomain.ListRequest{
		Pagination: query.Pagination,
		Status:     strings.TrimSpace(query.Status),
		RepID:      repID,
		From:       from,
		To:         to,
		Search:     strings.TrimSpace(query.Search),
	}, true
}

func (s *Server) ListCommissionRecords(c *gin.Context) {
	req, ok := s.bindListRecordsRequest(c)
	if !ok {
		return
	}

	resp, err := s.commissionSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CommissionSummary(c *gin.Context) {
	req, ok := s.bindListRecordsRequest(c)
	if !ok {
		return
	}

	resp, err := s.commissionSvc.Summary(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
