// Package handler serves math routes: it derives the cache key for a request,
// delivers cached variants and falls back to the render pipeline on a miss.
package handler

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/math-hub/internal/cache"
	"github.com/any-hub/math-hub/internal/delivery"
	"github.com/any-hub/math-hub/internal/logging"
	"github.com/any-hub/math-hub/internal/metrics"
	"github.com/any-hub/math-hub/internal/render"
	"github.com/any-hub/math-hub/internal/server"
	"github.com/any-hub/math-hub/internal/typeset"
)

// CacheHitHeader 标记本次响应是否来自缓存。
const CacheHitHeader = "X-Math-Hub-Cache-Hit"

// Options 描述 Handler 的依赖。
type Options struct {
	Pipeline *render.Pipeline
	Delivery delivery.Strategy
	Store    cache.Store
	Logger   *logrus.Logger
	Metrics  metrics.Recorder
}

// Handler 负责 “查缓存 → 命中交付 / 未命中渲染” 的流程，实现 server.RouteHandler。
type Handler struct {
	pipeline *render.Pipeline
	delivery delivery.Strategy
	store    cache.Store
	logger   *logrus.Logger
	metrics  metrics.Recorder
}

// NewHandler 校验依赖并构造 Handler。
func NewHandler(opts Options) (*Handler, error) {
	if opts.Pipeline == nil {
		return nil, errors.New("render pipeline is required")
	}
	if opts.Delivery == nil {
		return nil, errors.New("delivery strategy is required")
	}
	if opts.Store == nil {
		return nil, errors.New("cache store is required")
	}
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	recorder := opts.Metrics
	if recorder == nil {
		recorder = metrics.Noop()
	}
	return &Handler{
		pipeline: opts.Pipeline,
		delivery: opts.Delivery,
		store:    opts.Store,
		logger:   opts.Logger,
		metrics:  recorder,
	}, nil
}

// Handle 处理一次数学路由请求，rawQuery 为尚未解码的查询串。
func (h *Handler) Handle(c fiber.Ctx, route *server.Route, rawQuery string) error {
	expression := decodeExpression(rawQuery)
	req := render.Request{Expression: expression, Mode: route.Mode}
	locator := cache.Locator{Key: req.Key(), Format: route.Format}

	// 客户端断开不应中止渲染，否则结果无法落盘，下次请求仍需重新排版。
	ctx := context.Background()
	if reqCtx := c.Context(); reqCtx != nil {
		ctx = context.WithoutCancel(reqCtx)
	}

	if h.store.Exists(ctx, locator) {
		resp, err := h.delivery.Deliver(ctx, locator, route.ContentType)
		switch {
		case err == nil:
			h.metrics.RecordLookup(ctx, route.Path, true)
			h.logRequest(c, route, locator, true).Debug("cache_hit")
			return writeDelivery(c, resp)
		case errors.Is(err, cache.ErrNotFound):
			// 文件在检查与读取之间消失，按未命中处理。
		default:
			h.metrics.RecordLookup(ctx, route.Path, true)
			h.logRequest(c, route, locator, true).WithError(err).Error("cache_read_failed")
			return h.writeError(c, fiber.StatusInternalServerError, err.Error())
		}
	}

	h.metrics.RecordLookup(ctx, route.Path, false)
	return h.render(ctx, c, route, req, locator)
}

func (h *Handler) render(ctx context.Context, c fiber.Ctx, route *server.Route, req render.Request, locator cache.Locator) error {
	started := time.Now()
	result, err := h.pipeline.Render(ctx, req, route.Format == cache.FormatPNG)
	elapsed := time.Since(started)

	if err != nil {
		entry := h.logRequest(c, route, locator, false).WithError(err).WithField("elapsed_ms", elapsed.Milliseconds())
		if typesetErr, ok := typeset.AsError(err); ok {
			h.metrics.RecordRender(ctx, route.Path, elapsed, "typeset")
			entry.Info("render_failed")
			return h.writeError(c, fiber.StatusBadRequest, typesetErr.Diagnostic)
		}
		h.metrics.RecordRender(ctx, route.Path, elapsed, "internal")
		entry.Error("render_failed")
		return h.writeError(c, fiber.StatusInternalServerError, err.Error())
	}

	h.metrics.RecordRender(ctx, route.Path, elapsed, "")
	h.logRequest(c, route, locator, false).WithField("elapsed_ms", elapsed.Milliseconds()).Info("render_complete")

	c.Set(CacheHitHeader, strconv.FormatBool(false))
	c.Set(fiber.HeaderContentType, route.ContentType)
	return c.Status(fiber.StatusOK).Send(result.Bytes(route.Format))
}

func writeDelivery(c fiber.Ctx, resp *delivery.Response) error {
	c.Set(CacheHitHeader, strconv.FormatBool(true))
	c.Set(fiber.HeaderContentType, resp.ContentType)
	for name, value := range resp.Headers {
		c.Set(name, value)
	}
	c.Status(resp.Status)
	if len(resp.Body) == 0 {
		return nil
	}
	return c.Send(resp.Body)
}

func (h *Handler) writeError(c fiber.Ctx, status int, body string) error {
	c.Set(CacheHitHeader, strconv.FormatBool(false))
	return server.WriteText(c, status, body)
}

func (h *Handler) logRequest(c fiber.Ctx, route *server.Route, locator cache.Locator, hit bool) *logrus.Entry {
	fields := logging.RequestFields(route.Path, string(route.Mode), string(route.Format), string(locator.Key), hit)
	fields["action"] = "render"
	fields["request_id"] = server.RequestID(c)
	fields["delivery"] = h.delivery.Mode()
	return h.logger.WithFields(fields)
}
