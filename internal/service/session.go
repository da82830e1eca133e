package service

import (
	"sync"
	"time"

	"github.com/csform-next/internal/cache"
	"github.com/csform-next/internal/models"
)

// OTPSession 单次 OTP 会话状态
type OTPSession struct {
	CacheKey        string    // 发送步骤返回的不透明键
	Digits          [4]string // 四位输入槽
	Sent            bool      // 是否已发送
	Verified        bool      // 是否校验通过
	TokenIssued     bool      // 校验令牌是否已签发（每会话至多一次）
	ValidationToken string    // 校验令牌
	Deadline        time.Time // 倒计时截止时刻（零值表示未开始或已停止）
	RequestToken    string    // 在途请求令牌，新请求会取代旧请求
}

// CheckoutSession 会话级表单控制器
// 表单记录、OTP 状态与追加销售链路标记均归本实例所有；
// 跨请求的互斥由 mu 保证，回调之间不存在并行执行
type CheckoutSession struct {
	ID           string
	Form         models.FormRecord
	OTP          OTPSession
	Params       map[string]string // 入站 URL 查询参数
	Cookies      map[string]string // _fbc/_fbp 等浏览器 Cookie
	SourceURL    string
	UserAgent    string
	EventSeed    string // 事件 ID 的会话随机后缀
	AgreeToTerms bool
	SubmitStatus string
	Confirmation bool // 是否已进入订单确认
	SecondLayer  bool // 当前页是否已是第二层追加销售

	mu sync.Mutex
}

// Lock 获取会话互斥锁
func (s *CheckoutSession) Lock() {
	s.mu.Lock()
}

// Unlock 释放会话互斥锁
func (s *CheckoutSession) Unlock() {
	s.mu.Unlock()
}

// SelectedBundle 返回当前选择的商品键
func (s *CheckoutSession) SelectedBundle() string {
	return s.Form.GetString("bundle")
}

// OriginalBundle 返回最初购买的商品键
// 进入追加销售链路后由查询参数 originalBundle 固定，不再改变
func (s *CheckoutSession) OriginalBundle() string {
	if original := s.Form.GetString("originalBundle"); original != "" {
		return original
	}
	return s.SelectedBundle()
}

// OTPRemaining 返回倒计时剩余秒数
// 倒计时到零后停住，不会自动触发过期转移
func (s *CheckoutSession) OTPRemaining(now time.Time) int {
	if s.OTP.Deadline.IsZero() {
		return 0
	}
	remaining := int(s.OTP.Deadline.Sub(now).Seconds())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// otpSnapshot 导出 OTP 会话快照
func (s *CheckoutSession) otpSnapshot() *cache.OTPState {
	state := &cache.OTPState{
		SessionID:       s.ID,
		CacheKey:        s.OTP.CacheKey,
		Digits:          s.OTP.Digits,
		Sent:            s.OTP.Sent,
		Verified:        s.OTP.Verified,
		TokenIssued:     s.OTP.TokenIssued,
		ValidationToken: s.OTP.ValidationToken,
		RequestToken:    s.OTP.RequestToken,
	}
	if !s.OTP.Deadline.IsZero() {
		state.Deadline = s.OTP.Deadline.Unix()
	}
	return state
}

// restoreOTP 从快照还原 OTP 会话
func (s *CheckoutSession) restoreOTP(state *cache.OTPState) {
	if state == nil {
		return
	}
	s.OTP = OTPSession{
		CacheKey:        state.CacheKey,
		Digits:          state.Digits,
		Sent:            state.Sent,
		Verified:        state.Verified,
		TokenIssued:     state.TokenIssued,
		ValidationToken: state.ValidationToken,
		RequestToken:    state.RequestToken,
	}
	if state.Deadline > 0 {
		s.OTP.Deadline = time.Unix(state.Deadline, 0)
	}
}
