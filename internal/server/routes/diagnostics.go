package routes

import (
	"net/http"
	"sort"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"

	"github.com/any-hub/math-hub/internal/server"
	"github.com/any-hub/math-hub/internal/typeset"
)

// DiagnosticsInfo 汇总诊断接口需要的启动期信息，启动后不再变化。
type DiagnosticsInfo struct {
	Version      string
	DeliveryMode string
	Capabilities typeset.Capabilities
	// MetricsHandler 仅在 prometheus 导出器启用时非空。
	MetricsHandler http.Handler
}

// RegisterDiagnosticRoutes 暴露 /-/routes 与 /-/metrics 诊断接口，供运维查询路由与能力探测结果。
// 必须在 server.NewApp 之后调用，路由器会把 /-/ 前缀的请求放行到这里。
func RegisterDiagnosticRoutes(app *fiber.App, table *server.RouteTable, info DiagnosticsInfo) {
	if app == nil || table == nil {
		return
	}

	app.Get("/-/routes", func(c fiber.Ctx) error {
		payload := fiber.Map{
			"version":       info.Version,
			"delivery_mode": info.DeliveryMode,
			"capabilities":  info.Capabilities,
			"routes":        encodeRoutes(table.List()),
			"skipped":       encodeSkipped(table.Skipped()),
		}
		return c.JSON(payload)
	})

	if info.MetricsHandler != nil {
		app.Get("/-/metrics", adaptor.HTTPHandler(info.MetricsHandler))
	}
}

type routePayload struct {
	Path        string `json:"path"`
	Mode        string `json:"mode"`
	Format      string `json:"format"`
	ContentType string `json:"content_type"`
}

func encodeRoutes(routes []server.Route) []routePayload {
	result := make([]routePayload, 0, len(routes))
	for _, route := range routes {
		result = append(result, routePayload{
			Path:        route.Path,
			Mode:        string(route.Mode),
			Format:      string(route.Format),
			ContentType: route.ContentType,
		})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Path < result[j].Path
	})
	return result
}

func encodeSkipped(skipped []server.SkippedRoute) []server.SkippedRoute {
	if skipped == nil {
		return []server.SkippedRoute{}
	}
	return skipped
}
