package service

import (
	"regexp"
	"strings"
)

var (
	singleDigitPattern = regexp.MustCompile(`^\d$`)
	fourDigitPattern   = regexp.MustCompile(`^\d{4}$`)
)

// OTPKeyEvent 输入槽按键事件
type OTPKeyEvent struct {
	Index   int    // 目标槽位（0-3）
	Key     string // 按键名（单个数字、Backspace、Delete、Tab）
	MetaKey bool   // 平台修饰键（全选组合）
}

// OTPInputResult 输入槽事件处理结果
type OTPInputResult struct {
	Accepted   bool // 按键是否被接受（false 表示应抑制）
	FocusIndex int  // 处理后焦点应落在的槽位
}

// HandleOTPKeydown 处理输入槽按键
// 仅接受数字、Backspace、Delete、Tab 与平台修饰键；
// 在非首槽按删除键时清空当前槽并将焦点移回前一槽
func (s *CheckoutSession) HandleOTPKeydown(event OTPKeyEvent) OTPInputResult {
	index := clampSlotIndex(event.Index)
	result := OTPInputResult{FocusIndex: index}

	isDigit := singleDigitPattern.MatchString(event.Key)
	isDelete := event.Key == "Backspace" || event.Key == "Delete"
	if !isDigit && !isDelete && event.Key != "Tab" && !event.MetaKey {
		return result
	}
	result.Accepted = true

	if isDelete && index > 0 {
		s.OTP.Digits[index] = ""
		result.FocusIndex = index - 1
	}
	return result
}

// HandleOTPInput 处理输入槽录入
// 录入单个数字后焦点自动前移
func (s *CheckoutSession) HandleOTPInput(index int, value string) OTPInputResult {
	index = clampSlotIndex(index)
	result := OTPInputResult{FocusIndex: index}
	if !singleDigitPattern.MatchString(value) {
		return result
	}
	s.OTP.Digits[index] = value
	result.Accepted = true
	if index < len(s.OTP.Digits)-1 {
		result.FocusIndex = index + 1
	}
	return result
}

// HandleOTPPaste 处理粘贴
// 恰好四位数字时一次性填满所有槽位，其余内容整体忽略
func (s *CheckoutSession) HandleOTPPaste(text string) bool {
	if !fourDigitPattern.MatchString(text) {
		return false
	}
	for i := range s.OTP.Digits {
		s.OTP.Digits[i] = string(text[i])
	}
	return true
}

// OTPCode 返回当前已输入的 OTP 串
func (s *CheckoutSession) OTPCode() string {
	return strings.Join(s.OTP.Digits[:], "")
}

// ClearOTPDigits 清空所有输入槽
func (s *CheckoutSession) ClearOTPDigits() {
	for i := range s.OTP.Digits {
		s.OTP.Digits[i] = ""
	}
}

func clampSlotIndex(index int) int {
	if index < 0 {
		return 0
	}
	if index > 3 {
		return 3
	}
	return index
}
