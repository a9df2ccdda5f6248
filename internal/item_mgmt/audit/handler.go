package audit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

type EntryResponse struct {
	AuditID    int64     `json:"audit_id"`
	Action     string    `json:"action"`
	ItemID     int64     `json:"item_id"`
	Actor      string    `json:"actor"`
	Detail     *string   `json:"detail,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	// GET /audit (新しい順、?item_id= で絞り込み)
	r.GET("/audit", h.List)
}

func (h *Handler) List(c *gin.Context) {
	var itemID *int64
	if v := c.Query("item_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "item_id must be a number"})
			return
		}
		itemID = &id
	}
	limit := 200
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	res, err := h.svc.List(c.Request.Context(), itemID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}
