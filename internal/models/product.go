package models

// Product 商品条目（配置加载后不可变）
type Product struct {
	Key      string `json:"key"`      // 唯一标识
	Price    int64  `json:"price"`    // 基础价格（整数比索）
	Quantity int    `json:"quantity"` // 捆绑数量
	Name     string `json:"name"`     // 展示名称
	Image    string `json:"img"`      // 图片路径
}

// PricedProduct 应用促销后的商品条目
// Price 字段始终为当前生效价格，促销生效时等于 SalePrice
type PricedProduct struct {
	Product
	OriginalPrice   int64  `json:"original_price,omitempty"`
	SalePrice       int64  `json:"sale_price,omitempty"`
	DiscountPercent int    `json:"discount_percentage,omitempty"`
	PromoName       string `json:"promo_name,omitempty"`
}

// OnPromo 判断该条目是否处于促销中
func (p PricedProduct) OnPromo() bool {
	return p.PromoName != ""
}
