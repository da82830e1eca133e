package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/csform-next/internal/constants"
	"github.com/csform-next/internal/models"

	"github.com/shopspring/decimal"
)

// AttributionService 营销归因服务
// 负责拼装转化事件：点击标识（fbc/fbp）优先取既有 Cookie，
// 缺失时按标准格式现场合成；个人信息一律 SHA-256 后出站
type AttributionService struct {
	now func() time.Time
}

// NewAttributionService 创建归因服务
func NewAttributionService(now func() time.Time) *AttributionService {
	if now == nil {
		now = time.Now
	}
	return &AttributionService{now: now}
}

// BuildPayload 构造转化事件载荷
// event_id 由事件名与会话种子拼接而成，同名事件在像素端与服务端中继共用，
// 供下游按事件去重
func (s *AttributionService) BuildPayload(sess *CheckoutSession, eventName string, total int64, quantity int) models.ConversionEvent {
	now := s.now()

	fbc := sess.Cookies["_fbc"]
	if fbc == "" {
		if fbclid := sess.Params[constants.ParamFbclid]; fbclid != "" {
			fbc = FormatFBC(fbclid, now)
		}
	}
	fbp := sess.Cookies["_fbp"]
	if fbp == "" {
		fbp = FormatFBP(now)
	}

	user := models.ConversionUserData{
		FBC:             fbc,
		FBP:             fbp,
		ClientIPAddress: nil,
		ClientUserAgent: sess.UserAgent,
	}
	if v := sess.Form.GetString(constants.FieldPhone); v != "" {
		user.Phones = []string{hashField(v)}
	}
	if v := sess.Form.GetString(constants.FieldFirstName); v != "" {
		user.FirstNames = []string{hashField(v)}
	}
	if v := sess.Form.GetString(constants.FieldLastName); v != "" {
		user.LastNames = []string{hashField(v)}
	}
	if v := sess.Form.GetString(constants.FieldEmail); v != "" {
		user.Emails = []string{hashField(v)}
	}
	if v := normalizeCity(sess.Form.GetString(constants.FieldCity)); v != "" {
		user.Cities = []string{hashField(v)}
	}

	return models.ConversionEvent{
		EventName:      eventName,
		EventTime:      now.Unix(),
		ActionSource:   "website",
		EventSourceURL: sess.SourceURL,
		EventID:        strings.ToLower(eventName) + sess.EventSeed,
		UserData:       user,
		CustomData: models.ConversionCustomData{
			Currency: constants.CurrencyPHP,
			Value:    decimal.NewFromInt(total).StringFixed(2),
			Quantity: quantity,
		},
	}
}

// FormatFBC 由 fbclid 合成点击标识，格式 fb.1.<毫秒时间戳>.<fbclid>
func FormatFBC(fbclid string, now time.Time) string {
	return fmt.Sprintf("fb.1.%d.%s", now.UnixMilli(), fbclid)
}

// FormatFBP 合成浏览器标识，格式 fb.1.<毫秒时间戳>.<随机数>
func FormatFBP(now time.Time) string {
	return fmt.Sprintf("fb.1.%d.%d", now.UnixMilli(), randomUint(10_000_000_000))
}

// hashField 原值做 SHA-256，十六进制小写输出
// 除 city 外的字段不做规整，哈希入参即表单原文
func hashField(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// normalizeCity 小写去空白后移除首个 "city"
func normalizeCity(value string) string {
	v := strings.ToLower(value)
	v = strings.Join(strings.Fields(v), "")
	return strings.Replace(v, "city", "", 1)
}

func randomUint(max int64) int64 {
	n, err := rand.Int(rand.Reader, big.NewInt(max))
	if err != nil {
		return 0
	}
	return n.Int64()
}
