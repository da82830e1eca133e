package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/csform-next/internal/constants"
)

// ErrPromoWindowInvalid 促销时段配置无效
var ErrPromoWindowInvalid = errors.New("promo window invalid")

// Promotion 促销时段（时间为马尼拉时区的墙上时间）
type Promotion struct {
	Name            string    `json:"name"`
	StartsAt        time.Time `json:"starts_at"`
	EndsAt          time.Time `json:"ends_at"`
	DiscountPercent int       `json:"discount_percentage"`
}

// Contains 判断给定时刻是否落在促销时段内（边界含端点）
func (p Promotion) Contains(now time.Time) bool {
	return !now.Before(p.StartsAt) && !now.After(p.EndsAt)
}

// ManilaLocation 返回固定的马尼拉时区
func ManilaLocation() *time.Location {
	loc, err := time.LoadLocation(constants.CivilTimezone)
	if err != nil {
		// Asia/Manila 无夏令时，固定 UTC+8
		return time.FixedZone("PHT", 8*3600)
	}
	return loc
}

// ParsePromotion 从配置字符串解析促销时段
func ParsePromotion(name, startsAt, endsAt string, discountPercent int) (Promotion, error) {
	if discountPercent < 0 || discountPercent > 100 {
		return Promotion{}, fmt.Errorf("%w: discount %d out of range", ErrPromoWindowInvalid, discountPercent)
	}
	start, err := parsePromoInstant(startsAt)
	if err != nil {
		return Promotion{}, fmt.Errorf("%w: starts_at %q", ErrPromoWindowInvalid, startsAt)
	}
	end, err := parsePromoInstant(endsAt)
	if err != nil {
		return Promotion{}, fmt.Errorf("%w: ends_at %q", ErrPromoWindowInvalid, endsAt)
	}
	if end.Before(start) {
		return Promotion{}, fmt.Errorf("%w: %q ends before it starts", ErrPromoWindowInvalid, name)
	}
	return Promotion{
		Name:            strings.TrimSpace(name),
		StartsAt:        start,
		EndsAt:          end,
		DiscountPercent: discountPercent,
	}, nil
}

// parsePromoInstant 支持带时区偏移与不带偏移（按马尼拉时区）两种写法
func parsePromoInstant(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, ErrPromoWindowInvalid
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02T15:04:05", value, ManilaLocation())
}
