package service

import (
	"context"
	"strconv"
	"sync"

	"github.com/csform-next/internal/cache"
	"github.com/csform-next/internal/config"
	"github.com/csform-next/internal/constants"
	"github.com/csform-next/internal/logger"
	"github.com/csform-next/internal/models"
	"github.com/csform-next/internal/repository"

	"github.com/google/uuid"
)

// SessionOrigin 会话入站上下文
type SessionOrigin struct {
	Params    map[string]string // URL 查询参数
	Cookies   map[string]string
	SourceURL string
	UserAgent string
}

// SessionService 结算会话生命周期服务
// 活跃会话驻留内存，表单草稿与 OTP 快照分别落在本地库与 Redis，
// 进程重启或跨实例访问时按会话 ID 还原
type SessionService struct {
	draftRepo repository.FormDraftRepository
	checkout  config.CheckoutConfig

	mu       sync.RWMutex
	sessions map[string]*CheckoutSession
}

// NewSessionService 创建会话服务
func NewSessionService(draftRepo repository.FormDraftRepository, checkout config.CheckoutConfig) *SessionService {
	return &SessionService{
		draftRepo: draftRepo,
		checkout:  checkout,
		sessions:  make(map[string]*CheckoutSession),
	}
}

// Create 创建新会话
// 表单先取默认值，再依次叠加站点配置默认项与入站查询参数；
// 带 submission_status 参数的入站视为上一跳结果回流
func (s *SessionService) Create(ctx context.Context, origin SessionOrigin) *CheckoutSession {
	sess := &CheckoutSession{
		ID:        uuid.NewString(),
		Form:      models.NewFormRecord(s.extraFieldIDs()),
		Params:    map[string]string{},
		Cookies:   map[string]string{},
		SourceURL: origin.SourceURL,
		UserAgent: origin.UserAgent,
		EventSeed: strconv.FormatInt(randomUint(10_000_000_000), 10),
	}
	for key, value := range origin.Cookies {
		sess.Cookies[key] = value
	}
	for key, value := range origin.Params {
		sess.Params[key] = value
	}

	if len(s.checkout.Defaults) > 0 {
		sess.Form.Merge(s.checkout.Defaults)
	}
	sess.Form.Merge(formParams(origin.Params))

	sess.SecondLayer = parseBool(origin.Params[constants.ParamSecondLayer])
	if status := origin.Params[constants.ParamSubmissionStatus]; status != "" {
		sess.SubmitStatus = status
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	logger.Infow("session_created", "session_id", sess.ID, "bundle", sess.SelectedBundle())
	return sess
}

// Get 按 ID 取会话
// 内存未命中时从草稿库与 OTP 快照还原，二者都没有则判会话不存在
func (s *SessionService) Get(ctx context.Context, id string) (*CheckoutSession, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return sess, nil
	}

	draft, err := s.draftRepo.Get(id)
	if err != nil {
		return nil, err
	}
	state, hasState, err := cache.GetOTPState(ctx, id)
	if err != nil {
		logger.Warnw("otp_state_restore_failed", "session_id", id, "error", err)
	}
	if draft == nil && !hasState {
		return nil, ErrSessionNotFound
	}

	sess = &CheckoutSession{
		ID:        id,
		Form:      models.NewFormRecord(s.extraFieldIDs()),
		Params:    map[string]string{},
		Cookies:   map[string]string{},
		EventSeed: strconv.FormatInt(randomUint(10_000_000_000), 10),
	}
	if draft != nil {
		sess.Form.MergeRecord(models.FormRecordFromJSON(draft.DataJSON))
	}
	if hasState {
		sess.restoreOTP(state)
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	logger.Infow("session_restored", "session_id", id, "from_draft", draft != nil, "from_otp_state", hasState)
	return sess, nil
}

// Drop 移除会话并清理 OTP 快照
func (s *SessionService) Drop(ctx context.Context, id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	if err := cache.DelOTPState(ctx, id); err != nil {
		logger.Warnw("otp_state_delete_failed", "session_id", id, "error", err)
	}
}

func (s *SessionService) extraFieldIDs() []string {
	ids := make([]string, 0, len(s.checkout.ExtraFields))
	for _, field := range s.checkout.ExtraFields {
		ids = append(ids, field.ID)
	}
	return ids
}

// formParams 过滤掉仅用于链路追踪的查询参数，剩余键并入表单
func formParams(params map[string]string) map[string]string {
	filtered := make(map[string]string, len(params))
	for key, value := range params {
		switch key {
		case constants.ParamSecondLayer,
			constants.ParamSubmissionStatus,
			constants.ParamAdded,
			constants.ParamFbclid:
			continue
		}
		filtered[key] = value
	}
	return filtered
}
