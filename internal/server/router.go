package server

import (
	"bytes"
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RouteHandler describes the component that serves a resolved math route.
// rawQuery is everything after the first '?' of the request URI, still
// percent-encoded. It allows injecting fake handlers during tests.
type RouteHandler interface {
	Handle(c fiber.Ctx, route *Route, rawQuery string) error
}

// RouteHandlerFunc adapts a function to the RouteHandler interface.
type RouteHandlerFunc func(fiber.Ctx, *Route, string) error

// Handle makes RouteHandlerFunc satisfy RouteHandler.
func (f RouteHandlerFunc) Handle(c fiber.Ctx, route *Route, rawQuery string) error {
	return f(c, route, rawQuery)
}

// AppOptions controls how the Fiber application dispatches requests.
type AppOptions struct {
	Logger  *logrus.Logger
	Routes  *RouteTable
	Handler RouteHandler
}

const (
	contextKeyRequestID = "_mathhub_request_id"

	notFoundBody = "404 Not Found"
)

// NewApp builds a Fiber application with request-id middleware, path based
// route lookup and plain-text 404 handling.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Routes == nil {
		return nil, errors.New("route table is required")
	}
	if opts.Handler == nil {
		return nil, errors.New("route handler is required")
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
		ErrorHandler:  errorHandler(opts.Logger),
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware())

	app.All("/*", func(c fiber.Ctx) error {
		path := c.Path()
		if isDiagnosticsPath(path) {
			return c.Next()
		}
		route, ok := opts.Routes.Lookup(path)
		if !ok {
			return renderNotFound(c, opts.Logger, path, "route_unmapped")
		}
		// 没有 '?' 的请求与未知路径同等对待，避免把空表达式当作合法输入。
		rawQuery, hasQuery := splitRawQuery(c.Request().Header.RequestURI())
		if !hasQuery {
			return renderNotFound(c, opts.Logger, path, "query_missing")
		}
		return opts.Handler.Handle(c, route, rawQuery)
	})

	return app, nil
}

// errorHandler 让未匹配的 /-/ 诊断路径与数学路由使用同一份 404 正文。
func errorHandler(logger *logrus.Logger) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) && fiberErr.Code == fiber.StatusNotFound {
			return renderNotFound(c, logger, c.Path(), "route_unmapped")
		}
		return fiber.DefaultErrorHandler(c, err)
	}
}

// requestContextMiddleware 负责生成请求 ID 并写回响应头。
func requestContextMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

func renderNotFound(c fiber.Ctx, logger *logrus.Logger, path, reason string) error {
	logger.WithFields(logrus.Fields{
		"action":     "route_lookup",
		"path":       path,
		"reason":     reason,
		"request_id": RequestID(c),
	}).Debug("route not found")

	return WriteText(c, fiber.StatusNotFound, notFoundBody)
}

// WriteText 以 text/plain 写出状态码与正文，所有错误响应统一使用该格式。
func WriteText(c fiber.Ctx, status int, body string) error {
	c.Set(fiber.HeaderContentType, "text/plain; charset=utf-8")
	return c.Status(status).SendString(body)
}

// splitRawQuery 返回请求 URI 中首个 '?' 之后的原始查询串。
func splitRawQuery(requestURI []byte) (string, bool) {
	idx := bytes.IndexByte(requestURI, '?')
	if idx < 0 {
		return "", false
	}
	query := requestURI[idx+1:]
	if hash := bytes.IndexByte(query, '#'); hash >= 0 {
		query = query[:hash]
	}
	return string(query), true
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

func isDiagnosticsPath(path string) bool {
	return len(path) >= 3 && path[:3] == "/-/"
}
