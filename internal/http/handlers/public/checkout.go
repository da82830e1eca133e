package public

import (
	"github.com/csform-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

// UpdateFormRequest 表单字段更新请求
type UpdateFormRequest struct {
	Fields       map[string]string `json:"fields"`
	AgreeToTerms *bool             `json:"agree_to_terms"`
}

// UpdateForm 更新表单字段并落盘草稿
func (h *Handler) UpdateForm(c *gin.Context) {
	sess, ok := h.resolveSession(c)
	if !ok {
		return
	}

	var req UpdateFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	sess.Lock()
	defer sess.Unlock()

	if len(req.Fields) > 0 {
		sess.Form.Merge(req.Fields)
	}
	if req.AgreeToTerms != nil {
		sess.AgreeToTerms = *req.AgreeToTerms
	}
	h.SubmissionService.SaveDraft(sess)

	response.Success(c, h.sessionView(sess))
}

// QuantityRequest 数量调整请求
type QuantityRequest struct {
	Delta int `json:"delta" binding:"required"`
}

// AdjustQuantity 调整购买数量，数量下限为 1
func (h *Handler) AdjustQuantity(c *gin.Context) {
	sess, ok := h.resolveSession(c)
	if !ok {
		return
	}

	var req QuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	sess.Lock()
	defer sess.Unlock()

	sess.Form.SetQuantity(sess.Form.Quantity() + req.Delta)
	h.SubmissionService.SaveDraft(sess)

	response.Success(c, h.sessionView(sess))
}

// SubmitForm 表单提交进入订单确认
func (h *Handler) SubmitForm(c *gin.Context) {
	sess, ok := h.resolveSession(c)
	if !ok {
		return
	}
	sess.Lock()
	defer sess.Unlock()

	if err := h.SubmissionService.SubmitForm(c.Request.Context(), sess); err != nil {
		respondWithMappedError(c, err, formSubmitErrorRules, response.CodeInternal, "form submit failed")
		return
	}

	response.Success(c, h.sessionView(sess))
}

// FinalizeSubmission 最终提交订单
func (h *Handler) FinalizeSubmission(c *gin.Context) {
	sess, ok := h.resolveSession(c)
	if !ok {
		return
	}
	sess.Lock()
	defer sess.Unlock()

	nav, err := h.SubmissionService.FinalizeSubmission(c.Request.Context(), sess)
	if err != nil {
		respondWithMappedError(c, err, finalizeErrorRules, response.CodeBadGateway, "order submit failed")
		return
	}

	response.Success(c, gin.H{
		"navigation":    navigationView(nav),
		"submit_status": sess.SubmitStatus,
	})
}

// UpsellRequest 追加销售提交请求
type UpsellRequest struct {
	Bundle string `json:"bundle" binding:"required"`
}

// SubmitUpsell 提交追加销售订单
func (h *Handler) SubmitUpsell(c *gin.Context) {
	sess, ok := h.resolveSession(c)
	if !ok {
		return
	}

	var req UpsellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	sess.Lock()
	defer sess.Unlock()

	nav, err := h.SubmissionService.SubmitUpsell(c.Request.Context(), sess, req.Bundle)
	if err != nil {
		respondError(c, response.CodeInternal, "upsell submit failed", err)
		return
	}

	response.Success(c, gin.H{
		"navigation": navigationView(nav),
	})
}

// DeclineUpsell 跳过当前追加销售
// 第二层存在且尚未到达时给出第二层落点，否则直达感谢页
func (h *Handler) DeclineUpsell(c *gin.Context) {
	sess, ok := h.resolveSession(c)
	if !ok {
		return
	}
	sess.Lock()
	defer sess.Unlock()

	if !sess.SecondLayer {
		if page, found := h.UpsellService.NextUpsell(sess.OriginalBundle(), true); found {
			response.Success(c, gin.H{
				"navigation": gin.H{
					"url":      page,
					"terminal": false,
				},
			})
			return
		}
	}
	thankYou := h.Config.Checkout.ThankYouURL
	if thankYou == "" {
		thankYou = "./thankyou.html"
	}
	response.Success(c, gin.H{
		"navigation": gin.H{
			"url":      thankYou,
			"terminal": true,
		},
	})
}
