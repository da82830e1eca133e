package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/csform-next/internal/cache"
	"github.com/csform-next/internal/config"
	"github.com/csform-next/internal/constants"
	"github.com/csform-next/internal/gateway/mmio"
	"github.com/csform-next/internal/logger"

	"github.com/google/uuid"
)

// OTPService OTP 状态机服务
// Idle → Sent →（Verifying）→ Verified；失败回到可重试的 Sent。
// 倒计时为墙钟截止时刻，读取时换算剩余秒数；过期行为由策略决定：
// none 沿用倒计时仅作提示的行为，block 在截止后本地拒绝校验、要求重发
type OTPService struct {
	gateway          *mmio.Client
	senderID         string
	countdownSeconds int
	expiryPolicy     string
	now              func() time.Time
}

// NewOTPService 创建 OTP 服务
func NewOTPService(gateway *mmio.Client, site config.SiteConfig, otpCfg config.OTPConfig, now func() time.Time) *OTPService {
	if now == nil {
		now = time.Now
	}
	countdown := otpCfg.CountdownSeconds
	if countdown <= 0 {
		countdown = 300
	}
	policy := strings.TrimSpace(strings.ToLower(otpCfg.ExpiryPolicy))
	if policy != constants.OTPExpiryPolicyBlock {
		policy = constants.OTPExpiryPolicyNone
	}
	return &OTPService{
		gateway:          gateway,
		senderID:         site.SenderID,
		countdownSeconds: countdown,
		expiryPolicy:     policy,
		now:              now,
	}
}

// Send 发送 OTP
// 前置条件：已同意条款且手机号非空。成功后进入 Sent 并重置倒计时。
// 单槽请求令牌保证同一会话同一时刻只有一个在途请求有意义：
// 新请求取代旧请求，被取代的请求返回时其结果被丢弃
func (s *OTPService) Send(ctx context.Context, sess *CheckoutSession) error {
	if !sess.AgreeToTerms {
		return ErrTermsNotAccepted
	}
	phone := sess.Form.GetString(constants.FieldPhone)
	if phone == "" {
		return ErrPhoneRequired
	}

	requestToken := uuid.NewString()
	sess.OTP.RequestToken = requestToken

	cacheKey, err := s.gateway.RequestOTP(ctx, phone, s.senderID)
	if sess.OTP.RequestToken != requestToken {
		return ErrOTPSuperseded
	}
	if err != nil {
		logger.Warnw("otp_send_failed", "session_id", sess.ID, "error", err)
		return fmt.Errorf("otp send: %w", err)
	}

	sess.OTP.CacheKey = cacheKey
	sess.OTP.Sent = true
	sess.OTP.Verified = false
	sess.OTP.Deadline = s.now().Add(time.Duration(s.countdownSeconds) * time.Second)
	sess.ClearOTPDigits()
	s.snapshot(ctx, sess)

	logger.Infow("otp_sent", "session_id", sess.ID)
	return nil
}

// Verify 校验 OTP
// 前置条件：恰好四位数字。成功签发校验令牌（每会话至多一次）并停止倒计时；
// 失败清除已校验状态，倒计时保持原样，可直接重试
func (s *OTPService) Verify(ctx context.Context, sess *CheckoutSession) (string, error) {
	if sess.OTP.TokenIssued {
		return "", ErrOTPAlreadyVerified
	}
	if !sess.OTP.Sent || sess.OTP.CacheKey == "" {
		return "", ErrOTPNotSent
	}
	code := sess.OTPCode()
	if len(code) != 4 {
		return "", ErrOTPCodeLength
	}
	if s.expiryPolicy == constants.OTPExpiryPolicyBlock && sess.OTPRemaining(s.now()) == 0 {
		return "", ErrOTPExpired
	}

	requestToken := uuid.NewString()
	sess.OTP.RequestToken = requestToken

	result, err := s.gateway.VerifyOTP(ctx, sess.OTP.CacheKey, code)
	if sess.OTP.RequestToken != requestToken {
		return "", ErrOTPSuperseded
	}
	if err != nil {
		logger.Warnw("otp_verify_request_failed", "session_id", sess.ID, "error", err)
		return "", fmt.Errorf("otp verify: %w", err)
	}
	if !result.Status {
		sess.OTP.Verified = false
		s.snapshot(ctx, sess)
		return "", ErrOTPCodeInvalid
	}

	sess.OTP.ValidationToken = result.VerificationToken
	sess.OTP.Verified = true
	sess.OTP.TokenIssued = true
	// 校验成功即停表
	sess.OTP.Deadline = time.Time{}
	s.snapshot(ctx, sess)

	logger.Infow("otp_verified", "session_id", sess.ID)
	return result.VerificationToken, nil
}

// Remaining 返回当前倒计时剩余秒数
func (s *OTPService) Remaining(sess *CheckoutSession) int {
	return sess.OTPRemaining(s.now())
}

func (s *OTPService) snapshot(ctx context.Context, sess *CheckoutSession) {
	if err := cache.SetOTPState(ctx, sess.otpSnapshot()); err != nil {
		logger.Warnw("otp_state_snapshot_failed", "session_id", sess.ID, "error", err)
	}
}
