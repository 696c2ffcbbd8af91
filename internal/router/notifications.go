package router

import (
	"net/http"

	"shop_checkout/internal/notify"

	"github.com/gin-gonic/gin"
)

type notificationHandlers struct {
	svc *notify.Service
}

func (h *notificationHandlers) list(c *gin.Context) {
	page, err := h.svc.ListForUser(c.Request.Context(), identity(c).UserID, queryInt(c, "page"), queryInt(c, "limit"))
	if err != nil {
		respondErr(c, err)
		return
	}
	success(c, http.StatusOK, "", page)
}
