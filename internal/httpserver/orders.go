package httpserver

import (
	"errors"
	"fmt"
	"net/http"

	"storefront-checkout/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"
)

const qrSize = 256

func (h *handlers) lookupOrder(c *gin.Context) (*domain.Order, bool) {
	order, err := h.deps.Orders.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return nil, false
		}
		h.logger.Printf("orders: lookup code=%s error=%v", c.Param("code"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return nil, false
	}
	return order, true
}

func (h *handlers) getOrder(c *gin.Context) {
	order, ok := h.lookupOrder(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toOrderView(order))
}

// paymentQR renders the transfer reference of a QR-paid order as a PNG.
func (h *handlers) paymentQR(c *gin.Context) {
	order, ok := h.lookupOrder(c)
	if !ok {
		return
	}
	if order.Payment == nil || order.Payment.Provider != domain.PaymentProviderQR {
		c.JSON(http.StatusNotFound, gin.H{"error": "order has no QR payment"})
		return
	}
	png, err := qrcode.Encode(paymentQRContent(order), qrcode.Medium, qrSize)
	if err != nil {
		h.logger.Printf("orders: qr encode code=%s error=%v", order.Code, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}

func paymentQRContent(o *domain.Order) string {
	return fmt.Sprintf("ORDER:%s;AMOUNT:%s;CUR:%s", o.Code, decimal.New(o.TotalCents, -2).StringFixed(2), o.Currency)
}
