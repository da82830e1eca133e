package public

import (
	"github.com/csform-next/internal/constants"
	"github.com/csform-next/internal/http/response"
	"github.com/csform-next/internal/service"

	"github.com/gin-gonic/gin"
)

// GetSiteConfig 站点公开配置
// 仅暴露页面渲染所需的字段，令牌类配置不外发
func (h *Handler) GetSiteConfig(c *gin.Context) {
	site := h.Config.Site
	view := gin.H{
		"title":         site.Title,
		"currency":      site.Currency,
		"meta_pixel_id": site.MetaPixelID,
		"thank_you_url": h.Config.Checkout.ThankYouURL,
		"require_phone": h.Config.Checkout.RequirePhone,
		"require_email": h.Config.Checkout.RequireEmail,
		"extra_fields":  h.Config.Checkout.ExtraFields,
	}
	if promo := h.PromoService.ActivePromotion(); promo != nil {
		view["promotion"] = gin.H{
			"name":             promo.Name,
			"discount_percent": promo.DiscountPercent,
		}
	}
	response.Success(c, view)
}

// GetCatalog 商品目录（含当前促销价）
func (h *Handler) GetCatalog(c *gin.Context) {
	catalog := h.PricingService.PriceCatalog()
	items := make([]gin.H, 0, len(catalog))
	for _, key := range h.PricingService.Keys() {
		product, ok := catalog[key]
		if !ok {
			continue
		}
		original := product.OriginalPrice
		if !product.OnPromo() {
			original = product.Price
		}
		items = append(items, gin.H{
			"key":              product.Key,
			"name":             product.Name,
			"image":            product.Image,
			"quantity":         product.Quantity,
			"original_price":   original,
			"sale_price":       product.Price,
			"discount_percent": product.DiscountPercent,
			"on_promo":         product.OnPromo(),
			"price_display":    service.FormatPeso(product.Price),
			"original_display": service.FormatPeso(original),
		})
	}
	response.Success(c, gin.H{"items": items})
}

// SearchLocations 行政区划检索
func (h *Handler) SearchLocations(c *gin.Context) {
	locationType := c.Query("type")
	query := c.Query("q")
	results, err := h.LocationService.Search(c.Request.Context(), locationType, query)
	if err != nil {
		respondError(c, response.CodeBadGateway, "location search failed", err)
		return
	}
	response.Success(c, gin.H{"results": results})
}

// SelectLocationRequest 行政区划选定请求
type SelectLocationRequest struct {
	Type     string           `json:"type" binding:"required"`
	Location service.Location `json:"location" binding:"required"`
}

// SelectLocation 选定行政区划并级联填充表单
func (h *Handler) SelectLocation(c *gin.Context) {
	sess, ok := h.resolveSession(c)
	if !ok {
		return
	}

	var req SelectLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	sess.Lock()
	defer sess.Unlock()

	switch req.Type {
	case constants.LocationTypeBarangay:
		service.ApplyBarangay(sess.Form, req.Location)
	case constants.LocationTypeCity:
		service.ApplyCity(sess.Form, req.Location)
	case constants.LocationTypeProvince:
		service.ApplyProvince(sess.Form, req.Location)
	default:
		respondError(c, response.CodeBadRequest, "unknown location type", nil)
		return
	}
	h.SubmissionService.SaveDraft(sess)

	response.Success(c, h.sessionView(sess))
}
