package models

import (
	"fmt"
	"strconv"
	"time"

	"github.com/csform-next/internal/constants"

	"gorm.io/gorm"
)

// FormRecord 表单记录，键为字段 ID
// 除 quantity 外的值均为字符串；quantity 始终保持为 int
type FormRecord map[string]interface{}

// NewFormRecord 构建默认表单记录
// extraFieldIDs 为站点配置声明的扩展字段
func NewFormRecord(extraFieldIDs []string) FormRecord {
	record := FormRecord{
		constants.FieldFirstName:     "",
		constants.FieldLastName:      "",
		constants.FieldPhone:         "",
		constants.FieldEmail:         "",
		constants.FieldZipCode:       "",
		constants.FieldStreetAddress: "",
		constants.FieldBarangay:      "",
		constants.FieldCity:          "",
		constants.FieldProvince:      "",
		constants.FieldPaymentMethod: constants.PaymentMethodCOD,
		constants.FieldQuantity:      1,
	}
	for _, id := range extraFieldIDs {
		if _, exists := record[id]; !exists {
			record[id] = ""
		}
	}
	return record
}

// GetString 读取字符串字段，缺失或非字符串返回空串
func (f FormRecord) GetString(key string) string {
	value, ok := f[key]
	if !ok {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Quantity 读取数量字段，非法值回落为 1
func (f FormRecord) Quantity() int {
	switch v := f[constants.FieldQuantity].(type) {
	case int:
		if v >= 1 {
			return v
		}
	case float64:
		if v >= 1 {
			return int(v)
		}
	case string:
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			return n
		}
	}
	return 1
}

// SetQuantity 写入数量字段
func (f FormRecord) SetQuantity(quantity int) {
	if quantity < 1 {
		quantity = 1
	}
	f[constants.FieldQuantity] = quantity
}

// Empty 判断字段是否为空（缺失、空串或零数量视为空）
func (f FormRecord) Empty(key string) bool {
	value, ok := f[key]
	if !ok {
		return true
	}
	switch v := value.(type) {
	case string:
		return v == ""
	case int:
		return v == 0
	case float64:
		return v == 0
	default:
		return value == nil
	}
}

// Merge 合并另一份键值，来源覆盖已有值
func (f FormRecord) Merge(source map[string]string) {
	for key, value := range source {
		if key == constants.FieldQuantity {
			if n, err := strconv.Atoi(value); err == nil && n >= 1 {
				f[constants.FieldQuantity] = n
				continue
			}
		}
		f[key] = value
	}
}

// MergeRecord 合并另一份表单记录
func (f FormRecord) MergeRecord(source FormRecord) {
	for key, value := range source {
		if key == constants.FieldQuantity {
			f.SetQuantity(source.Quantity())
			continue
		}
		f[key] = value
	}
}

// Clone 复制表单记录
func (f FormRecord) Clone() FormRecord {
	clone := make(FormRecord, len(f))
	for key, value := range f {
		clone[key] = value
	}
	return clone
}

// ToQueryValues 导出为查询参数键值对
func (f FormRecord) ToQueryValues() map[string]string {
	values := make(map[string]string, len(f))
	for key := range f {
		values[key] = f.GetString(key)
	}
	return values
}

// ToJSON 导出为存储用 JSON
func (f FormRecord) ToJSON() JSON {
	payload := make(JSON, len(f))
	for key, value := range f {
		payload[key] = value
	}
	return payload
}

// FormRecordFromJSON 从存储 JSON 还原表单记录
func FormRecordFromJSON(payload JSON) FormRecord {
	record := make(FormRecord, len(payload))
	for key, value := range payload {
		record[key] = value
	}
	// JSON 反序列化后数量为 float64，收敛回 int
	record.SetQuantity(record.Quantity())
	return record
}

// FormDraft 表单草稿（每个会话一条，相当于浏览器端的单一存储槽）
type FormDraft struct {
	SessionID string    `gorm:"primarykey" json:"session_id"` // 会话ID
	DataJSON  JSON      `gorm:"type:json" json:"data"`        // 表单记录
	UpdatedAt time.Time `json:"updated_at"`                   // 更新时间
}

// TableName 指定表名
func (FormDraft) TableName() string {
	return "form_drafts"
}

// ContactVerdict 联系方式校验缓存
type ContactVerdict struct {
	ID        uint           `gorm:"primarykey" json:"id"`                        // 主键
	Kind      string         `gorm:"index:idx_verdict_kind_key;not null" json:"kind"` // phone / email
	Key       string         `gorm:"index:idx_verdict_kind_key;not null" json:"key"`  // 归一化手机号或原始邮箱
	Verdict   string         `gorm:"not null" json:"verdict"`                     // 格式化结果或 "invalid"
	ExpiresAt *time.Time     `gorm:"index" json:"expires_at"`                     // 过期时间（空表示永不过期）
	CreatedAt time.Time      `json:"created_at"`                                  // 创建时间
	UpdatedAt time.Time      `json:"updated_at"`                                  // 更新时间
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`                              // 软删除时间
}

// TableName 指定表名
func (ContactVerdict) TableName() string {
	return "contact_verdicts"
}

// Expired 判断缓存是否过期
func (v ContactVerdict) Expired(now time.Time) bool {
	return v.ExpiresAt != nil && now.After(*v.ExpiresAt)
}

// Invalid 判断是否为“无效”结论
func (v ContactVerdict) Invalid() bool {
	return v.Verdict == constants.VerdictInvalid
}
