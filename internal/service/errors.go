package service

import "errors"

var (
	// ErrRequiredFieldMissing 必填字段缺失
	ErrRequiredFieldMissing = errors.New("required field missing")
	// ErrPhoneInvalid 手机号校验未通过
	ErrPhoneInvalid = errors.New("phone number invalid")
	// ErrEmailInvalid 邮箱校验未通过
	ErrEmailInvalid = errors.New("email invalid")
	// ErrTermsNotAccepted 未同意服务条款
	ErrTermsNotAccepted = errors.New("terms not accepted")
	// ErrPhoneRequired 发送 OTP 前手机号不能为空
	ErrPhoneRequired = errors.New("phone number required")
	// ErrOTPNotSent OTP 尚未发送
	ErrOTPNotSent = errors.New("otp not sent")
	// ErrOTPCodeLength OTP 必须为 4 位数字
	ErrOTPCodeLength = errors.New("otp code must be 4 digits")
	// ErrOTPCodeInvalid OTP 校验未通过
	ErrOTPCodeInvalid = errors.New("otp code invalid")
	// ErrOTPExpired OTP 倒计时已结束（仅 block 策略下返回）
	ErrOTPExpired = errors.New("otp expired")
	// ErrOTPSuperseded 请求已被后续请求取代
	ErrOTPSuperseded = errors.New("otp request superseded")
	// ErrOTPAlreadyVerified 本会话已签发过校验令牌
	ErrOTPAlreadyVerified = errors.New("otp already verified")
	// ErrVerificationTokenMissing 缺少 OTP 校验令牌
	ErrVerificationTokenMissing = errors.New("verification token missing")
	// ErrSessionNotFound 会话不存在
	ErrSessionNotFound = errors.New("session not found")
	// ErrSubmitRejected 远端拒绝了本次订单提交
	ErrSubmitRejected = errors.New("submission rejected")
	// ErrBundleUnknown 商品键不在目录中
	ErrBundleUnknown = errors.New("bundle unknown")
	// ErrUpsellRouteInvalid 追加销售路由配置无效
	ErrUpsellRouteInvalid = errors.New("upsell route invalid")
)
