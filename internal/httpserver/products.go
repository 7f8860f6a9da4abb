package httpserver

import (
	"errors"
	"net/http"

	"storefront-checkout/internal/domain"
	productsvc "storefront-checkout/internal/service/product"

	"github.com/gin-gonic/gin"
)

type productView struct {
	ID          string `json:"id"`
	SKU         string `json:"sku"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	PriceCents  int64  `json:"priceCents"`
	Currency    string `json:"currency"`
	Available   int    `json:"available"`
	InStock     bool   `json:"inStock"`
}

func toProductView(a *productsvc.Availability) productView {
	return productView{
		ID:          a.Product.ID,
		SKU:         a.Product.SKU,
		Name:        a.Product.Name,
		Description: a.Product.Description,
		PriceCents:  a.Product.PriceCents,
		Currency:    a.Product.Currency,
		Available:   a.Available,
		InStock:     a.InStock(1),
	}
}

func (h *handlers) getProduct(c *gin.Context) {
	av, err := h.deps.Products.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		h.logger.Printf("products: get id=%s error=%v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, toProductView(av))
}
