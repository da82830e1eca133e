package repository

import (
	"errors"
	"time"

	"github.com/csform-next/internal/models"

	"gorm.io/gorm"
)

// ContactVerdictRepository 联系方式校验缓存数据访问接口
type ContactVerdictRepository interface {
	Get(kind, key string) (*models.ContactVerdict, error)
	Upsert(kind, key, verdict string, expiresAt *time.Time) (*models.ContactVerdict, error)
	DeleteExpired(now time.Time) (int64, error)
}

// GormContactVerdictRepository GORM 实现
type GormContactVerdictRepository struct {
	db *gorm.DB
}

// NewContactVerdictRepository 创建校验缓存仓库
func NewContactVerdictRepository(db *gorm.DB) *GormContactVerdictRepository {
	return &GormContactVerdictRepository{db: db}
}

// Get 获取缓存结论
func (r *GormContactVerdictRepository) Get(kind, key string) (*models.ContactVerdict, error) {
	var verdict models.ContactVerdict
	if err := r.db.Where("kind = ? AND key = ?", kind, key).First(&verdict).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &verdict, nil
}

// Upsert 更新或写入缓存结论
func (r *GormContactVerdictRepository) Upsert(kind, key, verdict string, expiresAt *time.Time) (*models.ContactVerdict, error) {
	record, err := r.Get(kind, key)
	if err != nil {
		return nil, err
	}
	if record == nil {
		record = &models.ContactVerdict{
			Kind:      kind,
			Key:       key,
			Verdict:   verdict,
			ExpiresAt: expiresAt,
		}
		if err := r.db.Create(record).Error; err != nil {
			return nil, err
		}
		return record, nil
	}

	record.Verdict = verdict
	record.ExpiresAt = expiresAt
	if err := r.db.Save(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

// DeleteExpired 清理已过期的缓存结论
func (r *GormContactVerdictRepository) DeleteExpired(now time.Time) (int64, error) {
	result := r.db.Where("expires_at IS NOT NULL AND expires_at < ?", now).
		Delete(&models.ContactVerdict{})
	return result.RowsAffected, result.Error
}
