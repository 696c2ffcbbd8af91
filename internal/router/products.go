package router

import (
	"net/http"

	"shop_checkout/internal/model"

	"github.com/gin-gonic/gin"
)

type productHandlers struct {
	st ProductStore
}

func (h *productHandlers) list(c *gin.Context) {
	list, err := h.st.ListProducts(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	if list == nil {
		list = []model.Product{}
	}
	success(c, http.StatusOK, "", gin.H{"products": list})
}

func (h *productHandlers) create(c *gin.Context) {
	var req struct {
		Title string `json:"title" binding:"required,max=128"`
		Price int64  `json:"price" binding:"required,gt=0"`
		Stock int64  `json:"stock" binding:"gte=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindErr(c, err)
		return
	}
	p, err := h.st.CreateProduct(c.Request.Context(), model.Product{
		SellerID: identity(c).UserID,
		Title:    req.Title,
		Price:    req.Price,
		Stock:    req.Stock,
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	success(c, http.StatusCreated, "Product created successfully", gin.H{"product": p})
}
