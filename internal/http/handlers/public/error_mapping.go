package public

import (
	"errors"

	"github.com/csform-next/internal/http/response"
	"github.com/csform-next/internal/logger"
	"github.com/csform-next/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系
type mappedHandlerError struct {
	target error
	code   int
	msg    string
}

func respondError(c *gin.Context, code int, msg string, err error) {
	if err != nil {
		logger.Warnw("request_failed",
			"path", c.FullPath(),
			"code", code,
			"error", err,
		)
	}
	response.Error(c, code, msg)
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackMsg string) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			respondError(c, rule.code, rule.msg, nil)
			return
		}
	}
	respondError(c, fallbackCode, fallbackMsg, err)
}

var formSubmitErrorRules = []mappedHandlerError{
	{target: service.ErrRequiredFieldMissing, code: response.CodeBadRequest, msg: "required field missing"},
	{target: service.ErrPhoneInvalid, code: response.CodeBadRequest, msg: "phone number invalid"},
	{target: service.ErrEmailInvalid, code: response.CodeBadRequest, msg: "email invalid"},
}

var otpSendErrorRules = []mappedHandlerError{
	{target: service.ErrTermsNotAccepted, code: response.CodeBadRequest, msg: "terms not accepted"},
	{target: service.ErrPhoneRequired, code: response.CodeBadRequest, msg: "phone number required"},
	{target: service.ErrOTPSuperseded, code: response.CodeBadRequest, msg: "request superseded"},
}

var otpVerifyErrorRules = []mappedHandlerError{
	{target: service.ErrOTPNotSent, code: response.CodeBadRequest, msg: "otp not sent"},
	{target: service.ErrOTPCodeLength, code: response.CodeBadRequest, msg: "otp code must be 4 digits"},
	{target: service.ErrOTPCodeInvalid, code: response.CodeBadRequest, msg: "otp code invalid"},
	{target: service.ErrOTPExpired, code: response.CodeBadRequest, msg: "otp expired"},
	{target: service.ErrOTPAlreadyVerified, code: response.CodeBadRequest, msg: "otp already verified"},
	{target: service.ErrOTPSuperseded, code: response.CodeBadRequest, msg: "request superseded"},
}

var finalizeErrorRules = []mappedHandlerError{
	{target: service.ErrVerificationTokenMissing, code: response.CodeBadRequest, msg: "verification token missing"},
	{target: service.ErrBundleUnknown, code: response.CodeBadRequest, msg: "bundle unknown"},
	{target: service.ErrSubmitRejected, code: response.CodeBadGateway, msg: "submission rejected"},
}
