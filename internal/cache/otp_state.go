package cache

import (
	"context"
	"fmt"
	"time"
)

const otpStateCacheTTL = 30 * time.Minute

// OTPState OTP 会话快照
// deadline 为 Unix 秒时间戳，0 表示倒计时未开始
// 该结构仅用于服务端 Redis 缓存，避免会话实例丢失后 OTP 流程中断
type OTPState struct {
	SessionID       string    `json:"session_id"`
	CacheKey        string    `json:"cache_key"`
	Digits          [4]string `json:"digits"`
	Sent            bool      `json:"sent"`
	Verified        bool      `json:"verified"`
	TokenIssued     bool      `json:"token_issued"`
	ValidationToken string    `json:"validation_token"`
	Deadline        int64     `json:"deadline"`
	RequestToken    string    `json:"request_token"`
	UpdatedAt       int64     `json:"updated_at"`
}

func otpStateKey(sessionID string) string {
	return fmt.Sprintf("otp:session:%s", sessionID)
}

// GetOTPState 读取 OTP 会话快照
func GetOTPState(ctx context.Context, sessionID string) (*OTPState, bool, error) {
	var state OTPState
	hit, err := GetJSON(ctx, otpStateKey(sessionID), &state)
	if err != nil || !hit {
		return nil, false, err
	}
	return &state, true, nil
}

// SetOTPState 写入 OTP 会话快照
func SetOTPState(ctx context.Context, state *OTPState) error {
	if state == nil || state.SessionID == "" {
		return nil
	}
	state.UpdatedAt = time.Now().Unix()
	return SetJSON(ctx, otpStateKey(state.SessionID), state, otpStateCacheTTL)
}

// DelOTPState 删除 OTP 会话快照
func DelOTPState(ctx context.Context, sessionID string) error {
	return Del(ctx, otpStateKey(sessionID))
}
