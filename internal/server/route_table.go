package server

import (
	"errors"
	"fmt"

	"github.com/any-hub/math-hub/internal/cache"
	"github.com/any-hub/math-hub/internal/config"
	"github.com/any-hub/math-hub/internal/typeset"
)

// Route 将一个 URL 路径绑定到 (mode, format)，并预先计算好响应 Content-Type。
// 同一 mode 的 svg/png 路由共享缓存键，仅文件后缀不同。
type Route struct {
	Path        string
	Mode        cache.Mode
	Format      cache.Format
	ContentType string
}

// SkippedRoute 记录因可选工具缺失而未注册的路由，供启动日志与诊断接口输出。
type SkippedRoute struct {
	Path   string `json:"path"`
	Mode   string `json:"mode"`
	Format string `json:"format"`
	Reason string `json:"reason"`
}

// RouteTable 提供路径到 Route 的查询能力，构建后只读。
type RouteTable struct {
	routes  map[string]*Route
	ordered []*Route
	skipped []SkippedRoute
}

// NewRouteTable 根据配置与启动时探测到的工具能力构建路由表。
// 需要光栅化器但其不可用的路由直接跳过，而不是注册后在请求时失败。
func NewRouteTable(cfg *config.Config, caps typeset.Capabilities) (*RouteTable, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	specs := cfg.RouteSpecs()
	table := &RouteTable{routes: make(map[string]*Route, len(specs))}

	for _, spec := range specs {
		mode, err := cache.ParseMode(spec.Mode)
		if err != nil {
			return nil, fmt.Errorf("route %s: %w", spec.Path, err)
		}
		format, err := cache.ParseFormat(spec.Format)
		if err != nil {
			return nil, fmt.Errorf("route %s: %w", spec.Path, err)
		}
		if _, exists := table.routes[spec.Path]; exists {
			return nil, fmt.Errorf("duplicate route path detected for %s", spec.Path)
		}

		if format == cache.FormatPNG && !caps.HasRasterizer {
			table.skipped = append(table.skipped, SkippedRoute{
				Path:   spec.Path,
				Mode:   spec.Mode,
				Format: spec.Format,
				Reason: "rasterizer unavailable",
			})
			continue
		}

		route := &Route{
			Path:        spec.Path,
			Mode:        mode,
			Format:      format,
			ContentType: format.ContentType(),
		}
		table.routes[spec.Path] = route
		table.ordered = append(table.ordered, route)
	}

	if len(table.ordered) == 0 {
		return nil, errors.New("no route could be registered")
	}
	return table, nil
}

// Lookup 根据请求路径查找 Route，路径区分大小写。
func (t *RouteTable) Lookup(path string) (*Route, bool) {
	if t == nil {
		return nil, false
	}
	route, ok := t.routes[path]
	return route, ok
}

// List 返回当前注册的 Route 列表（按配置定义的顺序）。
func (t *RouteTable) List() []Route {
	if t == nil || len(t.ordered) == 0 {
		return nil
	}
	result := make([]Route, len(t.ordered))
	for i, route := range t.ordered {
		result[i] = *route
	}
	return result
}

// Skipped 返回因工具缺失而未注册的路由。
func (t *RouteTable) Skipped() []SkippedRoute {
	if t == nil {
		return nil
	}
	return append([]SkippedRoute(nil), t.skipped...)
}
