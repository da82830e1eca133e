// Package mmio 封装 Marketing Master IO 远端接口：
// 订单提交、OTP 发送与校验、手机号/邮箱校验、服务端转化中继。
package mmio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/csform-next/internal/models"
)

var (
	ErrConfigInvalid   = errors.New("mmio config invalid")
	ErrRequestFailed   = errors.New("mmio request failed")
	ErrResponseInvalid = errors.New("mmio response invalid")
)

// Config 网关配置
type Config struct {
	APIHost            string `json:"api_host"`            // 订单与 OTP 接口地址
	ConversionEndpoint string `json:"conversion_endpoint"` // 服务端转化中继地址
	ValidationHost     string `json:"validation_host"`     // 手机号/邮箱校验服务地址
	TimeoutSeconds     int    `json:"timeout_seconds"`
}

func (c *Config) normalize() {
	c.APIHost = strings.TrimRight(strings.TrimSpace(c.APIHost), "/")
	c.ConversionEndpoint = strings.TrimSpace(c.ConversionEndpoint)
	c.ValidationHost = strings.TrimRight(strings.TrimSpace(c.ValidationHost), "/")
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 15
	}
}

// ValidateConfig 校验配置
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.APIHost) == "" {
		return fmt.Errorf("%w: api_host is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.ConversionEndpoint) == "" {
		return fmt.Errorf("%w: conversion_endpoint is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.ValidationHost) == "" {
		return fmt.Errorf("%w: validation_host is required", ErrConfigInvalid)
	}
	return nil
}

// Client 网关客户端
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient 创建网关客户端
func NewClient(cfg Config) (*Client, error) {
	cfg.normalize()
	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}, nil
}

// ValidationResult 手机号/邮箱校验结果
type ValidationResult struct {
	Valid     bool   `json:"valid"`
	Formatted string `json:"formatted"`
}

// ValidatePhone 校验手机号（number 为归一化后的纯数字串）
func (c *Client) ValidatePhone(ctx context.Context, number string) (*ValidationResult, error) {
	endpoint := c.cfg.ValidationHost + "/validate_phone/" + url.PathEscape(number)
	body, err := c.getRaw(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	var result ValidationResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	return &result, nil
}

// ValidateEmail 校验邮箱
func (c *Client) ValidateEmail(ctx context.Context, email string) (*ValidationResult, error) {
	endpoint := c.cfg.ValidationHost + "/validate_email/" + url.PathEscape(email)
	body, err := c.getRaw(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	var result ValidationResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	return &result, nil
}

// RequestOTP 请求下发 OTP，返回后续校验用的 cache key
func (c *Client) RequestOTP(ctx context.Context, phoneNumber, senderID string) (string, error) {
	if strings.TrimSpace(phoneNumber) == "" {
		return "", fmt.Errorf("%w: phone_number is required", ErrConfigInvalid)
	}
	query := url.Values{}
	query.Set("phone_number", phoneNumber)
	query.Set("senderId", senderID)
	endpoint := c.cfg.APIHost + "/cform_request_otp?" + query.Encode()

	body, err := c.getRaw(ctx, endpoint)
	if err != nil {
		return "", err
	}
	var resp struct {
		CacheKey string `json:"cache_key"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	if resp.CacheKey == "" {
		return "", fmt.Errorf("%w: empty cache_key", ErrResponseInvalid)
	}
	return resp.CacheKey, nil
}

// VerifyOTPResult OTP 校验结果
type VerifyOTPResult struct {
	Status            bool   `json:"status"`
	VerificationToken string `json:"verification_token"`
}

// VerifyOTP 校验 OTP
func (c *Client) VerifyOTP(ctx context.Context, cacheKey, otp string) (*VerifyOTPResult, error) {
	query := url.Values{}
	query.Set("cache_key", cacheKey)
	query.Set("otp", otp)
	endpoint := c.cfg.APIHost + "/cform_verify_otp?" + query.Encode()

	body, err := c.getRaw(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	var result VerifyOTPResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	return &result, nil
}

// SubmitEnvelope 订单提交请求体
type SubmitEnvelope struct {
	Data               models.JSON            `json:"data"`
	ConversionAPI      models.ConversionEvent `json:"conversionApi"`
	MetaPixelID        string                 `json:"metaPixelId"`
	ConversionAPIToken string                 `json:"conversionApiToken"`
	Params             map[string]string      `json:"params"`
	VerificationToken  string                 `json:"verificationToken"`
	SheetID            string                 `json:"sheet_id"`
	SheetName          string                 `json:"sheet_name"`
	BusinessEmail      string                 `json:"businessEmail"`
	BusinessPhone      string                 `json:"businessPhone"`
	BusinessName       string                 `json:"businessName"`
	SenderID           string                 `json:"senderId"`
}

// SubmitResult 订单提交结果
type SubmitResult struct {
	Status bool                   `json:"status"`
	Raw    map[string]interface{} `json:"-"`
}

// SubmitOrder 提交订单
func (c *Client) SubmitOrder(ctx context.Context, envelope SubmitEnvelope) (*SubmitResult, error) {
	endpoint := c.cfg.APIHost + "/cform_handle_submit"
	body, err := c.postJSON(ctx, endpoint, envelope)
	if err != nil {
		return nil, err
	}
	var result SubmitResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	var raw map[string]interface{}
	_ = json.Unmarshal(body, &raw)
	result.Raw = raw
	return &result, nil
}

// ConversionEnvelope 服务端转化中继请求体
type ConversionEnvelope struct {
	Data               models.JSON            `json:"data"`
	ConversionAPI      models.ConversionEvent `json:"conversionApi"`
	MetaPixelID        string                 `json:"metaPixelId"`
	ConversionAPIToken string                 `json:"conversionApiToken"`
	Params             map[string]string      `json:"params"`
}

// ReportConversion 上报服务端转化事件
// 中继返回不透明文本，不解析结构化成功标记
func (c *Client) ReportConversion(ctx context.Context, envelope ConversionEnvelope) (string, error) {
	body, err := c.postJSON(ctx, c.cfg.ConversionEndpoint, envelope)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *Client) getRaw(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: http status %d", ErrRequestFailed, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: http status %d", ErrRequestFailed, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
