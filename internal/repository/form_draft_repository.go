package repository

import (
	"errors"

	"github.com/csform-next/internal/models"

	"gorm.io/gorm"
)

// FormDraftRepository 表单草稿数据访问接口
type FormDraftRepository interface {
	Get(sessionID string) (*models.FormDraft, error)
	Save(sessionID string, data models.JSON) (*models.FormDraft, error)
	Delete(sessionID string) error
}

// GormFormDraftRepository GORM 实现
type GormFormDraftRepository struct {
	db *gorm.DB
}

// NewFormDraftRepository 创建表单草稿仓库
func NewFormDraftRepository(db *gorm.DB) *GormFormDraftRepository {
	return &GormFormDraftRepository{db: db}
}

// Get 获取草稿
func (r *GormFormDraftRepository) Get(sessionID string) (*models.FormDraft, error) {
	var draft models.FormDraft
	if err := r.db.Where("session_id = ?", sessionID).First(&draft).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &draft, nil
}

// Save 保存草稿（每个会话仅一条）
func (r *GormFormDraftRepository) Save(sessionID string, data models.JSON) (*models.FormDraft, error) {
	draft, err := r.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if draft == nil {
		draft = &models.FormDraft{
			SessionID: sessionID,
			DataJSON:  data,
		}
		if err := r.db.Create(draft).Error; err != nil {
			return nil, err
		}
		return draft, nil
	}

	draft.DataJSON = data
	if err := r.db.Save(draft).Error; err != nil {
		return nil, err
	}
	return draft, nil
}

// Delete 删除草稿
func (r *GormFormDraftRepository) Delete(sessionID string) error {
	return r.db.Where("session_id = ?", sessionID).Delete(&models.FormDraft{}).Error
}
