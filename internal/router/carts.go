package router

import (
	"net/http"

	"shop_checkout/internal/cart"

	"github.com/gin-gonic/gin"
)

type cartHandlers struct {
	svc *cart.Service
}

func (h *cartHandlers) get(c *gin.Context) {
	v, err := h.svc.Get(c.Request.Context(), identity(c).UserID)
	if err != nil {
		respondErr(c, err)
		return
	}
	success(c, http.StatusOK, "", v)
}

func (h *cartHandlers) add(c *gin.Context) {
	var req struct {
		ProductID uint  `json:"productId" binding:"required,min=1"`
		Quantity  int64 `json:"quantity" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindErr(c, err)
		return
	}
	v, err := h.svc.AddItem(c.Request.Context(), identity(c).UserID, req.ProductID, req.Quantity)
	if err != nil {
		respondErr(c, err)
		return
	}
	success(c, http.StatusOK, "Item added to cart", v)
}

func (h *cartHandlers) update(c *gin.Context) {
	pid, ok := idParam(c, "productId")
	if !ok {
		return
	}
	var req struct {
		Quantity int64 `json:"quantity" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindErr(c, err)
		return
	}
	v, err := h.svc.UpdateItem(c.Request.Context(), identity(c).UserID, pid, req.Quantity)
	if err != nil {
		respondErr(c, err)
		return
	}
	success(c, http.StatusOK, "Cart updated", v)
}

func (h *cartHandlers) remove(c *gin.Context) {
	pid, ok := idParam(c, "productId")
	if !ok {
		return
	}
	v, err := h.svc.RemoveItem(c.Request.Context(), identity(c).UserID, pid)
	if err != nil {
		respondErr(c, err)
		return
	}
	success(c, http.StatusOK, "Item removed from cart", v)
}

func (h *cartHandlers) clear(c *gin.Context) {
	if err := h.svc.Clear(c.Request.Context(), identity(c).UserID); err != nil {
		respondErr(c, err)
		return
	}
	success(c, http.StatusOK, "Cart cleared", nil)
}
