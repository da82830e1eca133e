package public

import (
	"errors"

	"github.com/csform-next/internal/constants"
	"github.com/csform-next/internal/http/response"
	"github.com/csform-next/internal/service"

	"github.com/gin-gonic/gin"
)

// CreateSessionRequest 创建会话请求
type CreateSessionRequest struct {
	Params    map[string]string `json:"params"`
	Cookies   map[string]string `json:"cookies"`
	SourceURL string            `json:"source_url"`
}

// CreateSession 创建结算会话
func (h *Handler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	sess := h.SessionService.Create(c.Request.Context(), service.SessionOrigin{
		Params:    req.Params,
		Cookies:   req.Cookies,
		SourceURL: req.SourceURL,
		UserAgent: c.Request.UserAgent(),
	})
	sess.Lock()
	defer sess.Unlock()

	// 成功回流的会话补发一次 Purchase（浏览器侧落地页已无服务端上下文）
	if sess.SubmitStatus == constants.SubmitStatusSuccess {
		h.SubmissionService.ReportConversion(c.Request.Context(), sess, constants.EventPurchase)
	}

	response.Success(c, h.sessionView(sess))
}

// GetSession 查询结算会话
func (h *Handler) GetSession(c *gin.Context) {
	sess, ok := h.resolveSession(c)
	if !ok {
		return
	}
	sess.Lock()
	defer sess.Unlock()

	response.Success(c, h.sessionView(sess))
}

func (h *Handler) resolveSession(c *gin.Context) (*service.CheckoutSession, bool) {
	id := c.Param("id")
	if id == "" {
		respondError(c, response.CodeBadRequest, "session id required", nil)
		return nil, false
	}
	sess, err := h.SessionService.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			response.NotFound(c, "session not found")
		} else {
			respondError(c, response.CodeInternal, "session load failed", err)
		}
		return nil, false
	}
	return sess, true
}

// sessionView 会话对外视图，OTP 的 cache key 与请求令牌不外露
func (h *Handler) sessionView(sess *service.CheckoutSession) gin.H {
	bundle := sess.SelectedBundle()
	quantity := sess.Form.Quantity()
	total := h.PricingService.TotalPayable(bundle, quantity)
	return gin.H{
		"session_id":    sess.ID,
		"form":          sess.Form,
		"bundle":        bundle,
		"quantity":      quantity,
		"total":         total,
		"total_display": service.FormatPeso(total),
		"confirmation":  sess.Confirmation,
		"submit_status": sess.SubmitStatus,
		"second_layer":  sess.SecondLayer,
		"agree_terms":   sess.AgreeToTerms,
		"otp": gin.H{
			"sent":      sess.OTP.Sent,
			"verified":  sess.OTP.Verified,
			"digits":    sess.OTP.Digits,
			"remaining": h.OTPService.Remaining(sess),
		},
	}
}

// navigationView 落点指令对外视图
func navigationView(nav service.Navigation) gin.H {
	view := gin.H{
		"url":       nav.URL,
		"terminal":  nav.Terminal,
		"uncertain": nav.Uncertain,
	}
	if nav.Pixel != nil {
		view["pixel"] = nav.Pixel
	}
	return view
}
