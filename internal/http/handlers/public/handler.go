package public

import "github.com/csform-next/internal/provider"

// Handler 公开接口处理器入口
type Handler struct {
	*provider.Container
}

// New 创建处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
