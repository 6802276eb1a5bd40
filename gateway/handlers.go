package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/example/roomservice/pkg/orders"
	"github.com/example/roomservice/pkg/status"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ItemIDs accepts either a single id or a list of ids.
type ItemIDs []string

func (ids *ItemIDs) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*ids = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var one string
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		*ids = ItemIDs{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*ids = many
	return nil
}

type updateItemStatusRequest struct {
	ItemIDs ItemIDs `json:"itemIds"`
	Status  string  `json:"status"`
}

// updateItemStatuses godoc
// @Summary  Set the status of order items
// @Tags     orders
// @Accept   json
// @Produce  json
// @Param    orderId path string true "Order ID"
// @Success  200 {object} map[string]interface{}
// @Failure  400,401,403,404,409,500 {object} map[string]interface{}
// @Router   /orders/{orderId}/items/status [patch]
func (g *Gateway) updateItemStatuses(c *gin.Context) {
	var req updateItemStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "detail": err.Error()})
		return
	}

	result, err := g.service.UpdateItemStatuses(c.Request.Context(), orders.UpdateRequest{
		CallerID: c.GetString(callerKey),
		OrderID:  c.Param("orderId"),
		ItemIDs:  req.ItemIDs,
		Status:   req.Status,
	})
	if err != nil {
		g.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order": result.Order,
		"items": result.Items,
	})
}

func (g *Gateway) getOrder(c *gin.Context) {
	view, err := g.service.Order(c.Request.Context(), c.GetString(callerKey), c.Param("orderId"))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (g *Gateway) orderHistory(c *gin.Context) {
	limit, err := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
		return
	}
	entries, err := g.service.History(c.Request.Context(), c.GetString(callerKey), c.Param("orderId"), limit)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "total": len(entries)})
}

func (g *Gateway) guestStatus(c *gin.Context) {
	st, err := g.service.GuestStatus(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order_id":     st.ID,
		"order_number": st.OrderNumber,
		"status":       st.Status,
		"label":        status.Status(st.Status).Label(),
		"updated_at":   st.UpdatedAt,
	})
}

func (g *Gateway) departmentBoard(name string) gin.HandlerFunc {
	dept, _ := status.DepartmentByName(name)
	return func(c *gin.Context) {
		entries, err := g.service.Board(c.Request.Context(), c.GetString(callerKey), c.Param("hotelId"), dept)
		if err != nil {
			g.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"department": dept,
			"orders":     entries,
			"total":      len(entries),
		})
	}
}

// fail maps service errors onto HTTP responses.
func (g *Gateway) fail(c *gin.Context, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, orders.ErrInvalidStatus), errors.Is(err, orders.ErrNoItems):
		code = http.StatusBadRequest
	case errors.Is(err, orders.ErrUnauthenticated):
		code = http.StatusUnauthorized
	case errors.Is(err, orders.ErrForbidden), errors.Is(err, orders.ErrCrossOrderItems):
		code = http.StatusForbidden
	case errors.Is(err, orders.ErrOrderNotFound):
		code = http.StatusNotFound
	case errors.Is(err, orders.ErrOrderBusy):
		code = http.StatusConflict
	case errors.Is(err, orders.ErrNoHistory):
		code = http.StatusNotImplemented
	}

	if code == http.StatusInternalServerError {
		g.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(code, gin.H{"error": "failed to process request", "detail": err.Error()})
		return
	}
	_ = c.Error(err)
	c.JSON(code, gin.H{"error": err.Error()})
}
