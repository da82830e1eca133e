package service

import (
	"time"

	"github.com/csform-next/internal/config"
	"github.com/csform-next/internal/logger"
	"github.com/csform-next/internal/models"
)

// PromoService 促销时段解析服务
// 判定按马尼拉时区进行，同时命中多个时段时取声明顺序最靠后的一个
type PromoService struct {
	promos []models.Promotion
	now    func() time.Time
}

// NewPromoService 创建促销时段服务
// 无法解析的配置条目会被记录并跳过，不影响其余时段
func NewPromoService(configs []config.PromoConfig, now func() time.Time) *PromoService {
	if now == nil {
		now = time.Now
	}
	promos := make([]models.Promotion, 0, len(configs))
	for _, c := range configs {
		promo, err := models.ParsePromotion(c.Name, c.StartsAt, c.EndsAt, c.DiscountPercent)
		if err != nil {
			logger.Warnw("promo_config_skipped", "name", c.Name, "error", err)
			continue
		}
		promos = append(promos, promo)
	}
	return &PromoService{promos: promos, now: now}
}

// ActivePromotion 返回当前生效的促销时段
// 每次读取价格都会重新判定，跨越时段边界无需重载
func (s *PromoService) ActivePromotion() *models.Promotion {
	return s.ActivePromotionAt(s.now())
}

// ActivePromotionAt 返回给定时刻生效的促销时段
func (s *PromoService) ActivePromotionAt(instant time.Time) *models.Promotion {
	now := instant.In(models.ManilaLocation())
	var active *models.Promotion
	for i := range s.promos {
		if s.promos[i].Contains(now) {
			active = &s.promos[i]
		}
	}
	return active
}
