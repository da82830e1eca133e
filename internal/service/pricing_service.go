package service

import (
	"strings"

	"github.com/csform-next/internal/config"
	"github.com/csform-next/internal/models"

	"github.com/shopspring/decimal"
)

// PricingService 定价服务
// 价格为整数比索，促销价在每次读取时由促销时段服务重新判定
type PricingService struct {
	catalog  map[string]models.Product
	ordered  []string
	promoSvc *PromoService
}

// NewPricingService 创建定价服务
func NewPricingService(items []config.ItemConfig, promoSvc *PromoService) *PricingService {
	catalog := make(map[string]models.Product, len(items))
	ordered := make([]string, 0, len(items))
	for _, item := range items {
		key := strings.TrimSpace(item.Key)
		if key == "" {
			continue
		}
		quantity := item.Quantity
		if quantity < 1 {
			quantity = 1
		}
		catalog[key] = models.Product{
			Key:      key,
			Price:    item.Price,
			Quantity: quantity,
			Name:     item.Name,
			Image:    item.Image,
		}
		ordered = append(ordered, key)
	}
	return &PricingService{catalog: catalog, ordered: ordered, promoSvc: promoSvc}
}

// HasBundle 判断商品是否存在
func (s *PricingService) HasBundle(bundle string) bool {
	_, ok := s.catalog[bundle]
	return ok
}

// Keys 返回商品键（按配置声明顺序）
func (s *PricingService) Keys() []string {
	keys := make([]string, len(s.ordered))
	copy(keys, s.ordered)
	return keys
}

// PriceCatalog 返回应用当前促销后的完整商品表
func (s *PricingService) PriceCatalog() map[string]models.PricedProduct {
	promo := s.promoSvc.ActivePromotion()
	priced := make(map[string]models.PricedProduct, len(s.catalog))
	for key, product := range s.catalog {
		priced[key] = applyPromo(product, promo)
	}
	return priced
}

// Lookup 返回单个商品的当前定价；不存在时返回 nil
func (s *PricingService) Lookup(bundle string) *models.PricedProduct {
	product, ok := s.catalog[bundle]
	if !ok {
		return nil
	}
	priced := applyPromo(product, s.promoSvc.ActivePromotion())
	return &priced
}

// PriceOf 返回商品当前生效单价；不存在时返回 0
func (s *PricingService) PriceOf(bundle string) int64 {
	priced := s.Lookup(bundle)
	if priced == nil {
		return 0
	}
	return priced.Price
}

// ProductName 返回商品展示名称；不存在时返回空串
func (s *PricingService) ProductName(bundle string) string {
	priced := s.Lookup(bundle)
	if priced == nil {
		return ""
	}
	return priced.Name
}

// ProductImage 返回商品图片；不存在时返回空串
func (s *PricingService) ProductImage(bundle string) string {
	priced := s.Lookup(bundle)
	if priced == nil {
		return ""
	}
	return priced.Image
}

// TotalPayable 计算应付总额
// 商品不存在时按 0 计，调用方不会因缺失条目而中断
func (s *PricingService) TotalPayable(bundle string, quantity int) int64 {
	if quantity < 1 {
		quantity = 1
	}
	return s.PriceOf(bundle) * int64(quantity)
}

func applyPromo(product models.Product, promo *models.Promotion) models.PricedProduct {
	priced := models.PricedProduct{Product: product}
	if promo == nil {
		return priced
	}
	priced.OriginalPrice = product.Price
	priced.SalePrice = SalePrice(product.Price, promo.DiscountPercent)
	priced.DiscountPercent = promo.DiscountPercent
	priced.PromoName = promo.Name
	// 下游合计逻辑只读 Price，无需感知促销
	priced.Price = priced.SalePrice
	return priced
}

// SalePrice 按折扣百分比计算促销价（四舍五入到整数比索）
func SalePrice(basePrice int64, discountPercent int) int64 {
	if discountPercent <= 0 {
		return basePrice
	}
	if discountPercent >= 100 {
		return 0
	}
	factor := decimal.NewFromInt(100 - int64(discountPercent)).Div(decimal.NewFromInt(100))
	return decimal.NewFromInt(basePrice).Mul(factor).Round(0).IntPart()
}

// OriginalPriceFromSale 由促销价反推原价（用于展示）
func OriginalPriceFromSale(salePrice int64, discountPercent int) int64 {
	if discountPercent <= 0 || discountPercent >= 100 {
		return salePrice
	}
	factor := decimal.NewFromInt(100 - int64(discountPercent)).Div(decimal.NewFromInt(100))
	return decimal.NewFromInt(salePrice).Div(factor).Round(0).IntPart()
}

// FormatPeso 格式化为比索金额（en-PH，两位小数）
func FormatPeso(amount int64) string {
	fixed := decimal.NewFromInt(amount).StringFixed(2)
	parts := strings.SplitN(fixed, ".", 2)
	return "₱" + groupThousands(parts[0]) + "." + parts[1]
}

func groupThousands(digits string) string {
	negative := strings.HasPrefix(digits, "-")
	if negative {
		digits = digits[1:]
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	if negative {
		return "-" + b.String()
	}
	return b.String()
}
