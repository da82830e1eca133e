package service

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/csform-next/internal/constants"
	"github.com/csform-next/internal/gateway/mmio"
	"github.com/csform-next/internal/logger"
	"github.com/csform-next/internal/repository"
)

var (
	digitsOnlyPattern = regexp.MustCompile(`^\d+$`)
	emailShapePattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// ContactResult 联系方式校验结果
type ContactResult struct {
	Valid     bool   // 是否有效
	Formatted string // 有效时的规范形式
	FromCache bool   // 是否命中本地缓存
}

// ContactService 联系方式校验服务
// 结论写入本地缓存，命中缓存时不发起网络请求；
// 缓存有效期可配置，0 表示沿用“一次校验永久信任”的行为
type ContactService struct {
	gateway     *mmio.Client
	verdictRepo repository.ContactVerdictRepository
	cacheTTL    time.Duration
	now         func() time.Time
}

// NewContactService 创建联系方式校验服务
func NewContactService(gateway *mmio.Client, verdictRepo repository.ContactVerdictRepository, cacheTTLHours int, now func() time.Time) *ContactService {
	if now == nil {
		now = time.Now
	}
	return &ContactService{
		gateway:     gateway,
		verdictRepo: verdictRepo,
		cacheTTL:    time.Duration(cacheTTLHours) * time.Hour,
		now:         now,
	}
}

// NormalizePhone 归一化手机号为带国际区号的数字串
// 本地 "0" 前缀替换为区号，已带区号的原样保留，其余直接加前缀
func NormalizePhone(raw string) string {
	digits := strings.TrimSpace(raw)
	switch {
	case digits == "":
		return ""
	case strings.HasPrefix(digits, constants.CountryCallingCode):
		return digits
	case strings.HasPrefix(digits, "0"):
		return constants.CountryCallingCode + digits[1:]
	default:
		return constants.CountryCallingCode + digits
	}
}

// ValidatePhone 校验手机号
// 归一化失败直接判无效；否则先查本地缓存，未命中再请求远端并缓存结论
func (s *ContactService) ValidatePhone(ctx context.Context, raw string) (ContactResult, error) {
	normalized := NormalizePhone(raw)
	if normalized == "" || !digitsOnlyPattern.MatchString(normalized) {
		return ContactResult{}, nil
	}

	if cached, hit := s.cachedVerdict(constants.VerdictKindPhone, normalized); hit {
		if cached == constants.VerdictInvalid {
			return ContactResult{FromCache: true}, nil
		}
		return ContactResult{Valid: true, Formatted: cached, FromCache: true}, nil
	}

	result, err := s.gateway.ValidatePhone(ctx, normalized)
	if err != nil {
		// 网络失败视为未能校验，不写缓存
		logger.Warnw("phone_validate_request_failed", "error", err)
		return ContactResult{}, err
	}
	if !result.Valid {
		s.storeVerdict(constants.VerdictKindPhone, normalized, constants.VerdictInvalid)
		return ContactResult{}, nil
	}
	s.storeVerdict(constants.VerdictKindPhone, normalized, result.Formatted)
	return ContactResult{Valid: true, Formatted: result.Formatted}, nil
}

// ValidateEmail 校验邮箱
// 形如 local@domain.tld 之外的输入直接判无效；缓存键为原始邮箱
func (s *ContactService) ValidateEmail(ctx context.Context, email string) (ContactResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || !emailShapePattern.MatchString(email) {
		return ContactResult{}, nil
	}

	if cached, hit := s.cachedVerdict(constants.VerdictKindEmail, email); hit {
		if cached == constants.VerdictInvalid {
			return ContactResult{FromCache: true}, nil
		}
		return ContactResult{Valid: true, Formatted: email, FromCache: true}, nil
	}

	result, err := s.gateway.ValidateEmail(ctx, email)
	if err != nil {
		logger.Warnw("email_validate_request_failed", "error", err)
		return ContactResult{}, err
	}
	if !result.Valid {
		s.storeVerdict(constants.VerdictKindEmail, email, constants.VerdictInvalid)
		return ContactResult{}, nil
	}
	s.storeVerdict(constants.VerdictKindEmail, email, email)
	return ContactResult{Valid: true, Formatted: email}, nil
}

// ValidatePair 并发校验手机号与邮箱
func (s *ContactService) ValidatePair(ctx context.Context, phone, email string) (ContactResult, ContactResult) {
	var phoneResult, emailResult ContactResult
	done := make(chan struct{})
	go func() {
		defer close(done)
		emailResult, _ = s.ValidateEmail(ctx, email)
	}()
	phoneResult, _ = s.ValidatePhone(ctx, phone)
	<-done
	return phoneResult, emailResult
}

func (s *ContactService) cachedVerdict(kind, key string) (string, bool) {
	record, err := s.verdictRepo.Get(kind, key)
	if err != nil {
		logger.Warnw("contact_verdict_read_failed", "kind", kind, "error", err)
		return "", false
	}
	if record == nil || record.Expired(s.now()) {
		return "", false
	}
	return record.Verdict, true
}

func (s *ContactService) storeVerdict(kind, key, verdict string) {
	var expiresAt *time.Time
	if s.cacheTTL > 0 {
		deadline := s.now().Add(s.cacheTTL)
		expiresAt = &deadline
	}
	if _, err := s.verdictRepo.Upsert(kind, key, verdict, expiresAt); err != nil {
		logger.Warnw("contact_verdict_write_failed", "kind", kind, "error", err)
	}
}
