package public

import (
	"github.com/csform-next/internal/http/response"
	"github.com/csform-next/internal/service"

	"github.com/gin-gonic/gin"
)

// SendOTP 发送 OTP
func (h *Handler) SendOTP(c *gin.Context) {
	sess, ok := h.resolveSession(c)
	if !ok {
		return
	}
	sess.Lock()
	defer sess.Unlock()

	if err := h.OTPService.Send(c.Request.Context(), sess); err != nil {
		respondWithMappedError(c, err, otpSendErrorRules, response.CodeBadGateway, "otp send failed")
		return
	}

	response.Success(c, gin.H{
		"sent":      true,
		"remaining": h.OTPService.Remaining(sess),
	})
}

// OTPInputRequest OTP 输入槽事件请求
// action 取 key / input / paste 之一
type OTPInputRequest struct {
	Action  string `json:"action" binding:"required"`
	Index   int    `json:"index"`
	Key     string `json:"key"`
	MetaKey bool   `json:"meta_key"`
	Value   string `json:"value"`
	Text    string `json:"text"`
}

// OTPInput 处理 OTP 输入槽事件
func (h *Handler) OTPInput(c *gin.Context) {
	sess, ok := h.resolveSession(c)
	if !ok {
		return
	}

	var req OTPInputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	sess.Lock()
	defer sess.Unlock()

	var result service.OTPInputResult
	switch req.Action {
	case "key":
		result = sess.HandleOTPKeydown(service.OTPKeyEvent{
			Index:   req.Index,
			Key:     req.Key,
			MetaKey: req.MetaKey,
		})
	case "input":
		result = sess.HandleOTPInput(req.Index, req.Value)
	case "paste":
		accepted := sess.HandleOTPPaste(req.Text)
		result = service.OTPInputResult{Accepted: accepted, FocusIndex: 3}
	default:
		respondError(c, response.CodeBadRequest, "unknown action", nil)
		return
	}

	response.Success(c, gin.H{
		"accepted":    result.Accepted,
		"focus_index": result.FocusIndex,
		"digits":      sess.OTP.Digits,
		"code":        sess.OTPCode(),
	})
}

// VerifyOTP 校验 OTP 并签发校验令牌
func (h *Handler) VerifyOTP(c *gin.Context) {
	sess, ok := h.resolveSession(c)
	if !ok {
		return
	}
	sess.Lock()
	defer sess.Unlock()

	token, err := h.OTPService.Verify(c.Request.Context(), sess)
	if err != nil {
		respondWithMappedError(c, err, otpVerifyErrorRules, response.CodeBadGateway, "otp verify failed")
		return
	}

	response.Success(c, gin.H{
		"verified":           true,
		"verification_token": token,
	})
}
