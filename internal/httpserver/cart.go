package httpserver

import (
	"errors"
	"net/http"

	"storefront-checkout/internal/domain"
	cartsvc "storefront-checkout/internal/service/cart"

	"github.com/gin-gonic/gin"
)

func (h *handlers) getCart(c *gin.Context) {
	owner := cartsvc.Owner{UserID: userIDFrom(c), AnonymousID: h.anonIDFromCookie(c)}
	cart, err := h.deps.CartSvc.Current(c.Request.Context(), owner)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, cartsvc.ErrNoOwner) {
			c.JSON(http.StatusNotFound, gin.H{"error": "cart not found"})
			return
		}
		h.logger.Printf("cart: get error=%v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, toCartView(cart))
}

func (h *handlers) addCartItem(c *gin.Context) {
	var in cartsvc.AddItemInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	owner := cartsvc.Owner{UserID: userIDFrom(c)}
	if owner.UserID == "" {
		owner.AnonymousID = h.ensureAnonID(c)
	}
	cart, err := h.deps.CartSvc.AddItem(c.Request.Context(), owner, in)
	if err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error(), "field": ve.Field})
			return
		}
		h.logger.Printf("cart: add item error=%v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, toCartView(cart))
}
