package service

import (
	"fmt"
	"path"
	"strings"

	"github.com/csform-next/internal/config"
)

// UpsellRoute 单个商品的追加销售路由
type UpsellRoute struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
}

// UpsellService 追加销售路由服务
// 路由表为静态配置，构建时校验；NextUpsell 是纯函数，不做任何 I/O
type UpsellService struct {
	routes map[string]UpsellRoute
}

// NewUpsellService 创建追加销售路由服务
// 校验规则：目标页不得指回商品自身页，primary 与 secondary 不得相同，
// 链路最多两层（由路由结构本身保证）
func NewUpsellService(configs []config.UpsellConfig) (*UpsellService, error) {
	routes := make(map[string]UpsellRoute, len(configs))
	for _, c := range configs {
		bundle := strings.TrimSpace(c.Bundle)
		if bundle == "" {
			return nil, fmt.Errorf("%w: empty bundle key", ErrUpsellRouteInvalid)
		}
		route := UpsellRoute{
			Primary:   strings.TrimSpace(c.Primary),
			Secondary: strings.TrimSpace(c.Secondary),
		}
		if route.Primary == "" && route.Secondary == "" {
			return nil, fmt.Errorf("%w: %q has no targets", ErrUpsellRouteInvalid, bundle)
		}
		if route.Primary != "" && route.Primary == route.Secondary {
			return nil, fmt.Errorf("%w: %q primary equals secondary", ErrUpsellRouteInvalid, bundle)
		}
		if isSelfLoop(bundle, route.Primary) || isSelfLoop(bundle, route.Secondary) {
			return nil, fmt.Errorf("%w: %q targets its own page", ErrUpsellRouteInvalid, bundle)
		}
		if _, duplicated := routes[bundle]; duplicated {
			return nil, fmt.Errorf("%w: %q declared twice", ErrUpsellRouteInvalid, bundle)
		}
		routes[bundle] = route
	}
	return &UpsellService{routes: routes}, nil
}

// NextUpsell 返回下一步追加销售页
// isSecondLayer=false 取 primary，true 取 secondary；无配置时返回 ("", false)，
// 调用方应转向最终感谢页
func (s *UpsellService) NextUpsell(originalBundle string, isSecondLayer bool) (string, bool) {
	route, ok := s.routes[originalBundle]
	if !ok {
		return "", false
	}
	target := route.Primary
	if isSecondLayer {
		target = route.Secondary
	}
	if target == "" {
		return "", false
	}
	return target, true
}

// Routes 返回路由表副本（用于配置回显）
func (s *UpsellService) Routes() map[string]UpsellRoute {
	routes := make(map[string]UpsellRoute, len(s.routes))
	for bundle, route := range s.routes {
		routes[bundle] = route
	}
	return routes
}

// isSelfLoop 判断目标页是否就是商品自身页
// 目标页按文件名去扩展后与商品键比对
func isSelfLoop(bundle, target string) bool {
	if target == "" {
		return false
	}
	slug := strings.TrimSuffix(path.Base(target), path.Ext(target))
	return strings.EqualFold(slug, bundle)
}
