package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/math-hub/internal/cache"
	"github.com/any-hub/math-hub/internal/metrics"
	"github.com/any-hub/math-hub/internal/typeset"
)

// ErrRasterUnavailable 表示请求了 PNG 变体但当前进程没有光栅化器。
// 正常情况下依赖光栅化器的路由不会被注册，因此该错误只在装配有误时出现。
var ErrRasterUnavailable = errors.New("rasterizer unavailable")

// Request 是一次渲染请求的语义内容。
type Request struct {
	Expression string
	Mode       cache.Mode
}

// Key 返回请求对应的缓存键。
func (r Request) Key() cache.Key {
	return cache.DeriveKey(r.Expression, r.Mode)
}

// Result 保存本次渲染得到的全部变体，Raster 仅在请求 PNG 时存在。
type Result struct {
	Key    cache.Key
	Vector []byte
	Raster []byte
}

// Bytes 返回指定格式的渲染结果。
func (r *Result) Bytes(format cache.Format) []byte {
	if format == cache.FormatPNG {
		return r.Raster
	}
	return r.Vector
}

// Options 描述 Pipeline 的依赖；Optimizer/Rasterizer 为 nil 表示不可用。
type Options struct {
	Engine     typeset.Engine
	Optimizer  typeset.Optimizer
	Rasterizer typeset.Rasterizer
	Store      cache.Store
	Logger     *logrus.Logger
	Metrics    metrics.Recorder
}

// Pipeline 负责 “排版 → 可选优化 → 写 SVG → 可选光栅化 → 写 PNG” 的完整流程。
// 自身不持有可变状态，可被所有请求并发复用。
type Pipeline struct {
	engine     typeset.Engine
	optimizer  typeset.Optimizer
	rasterizer typeset.Rasterizer
	store      cache.Store
	logger     *logrus.Logger
	metrics    metrics.Recorder
}

// NewPipeline 校验必需依赖并构造 Pipeline。
func NewPipeline(opts Options) (*Pipeline, error) {
	if opts.Engine == nil {
		return nil, errors.New("engine is required")
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
	return &Pipeline{
		engine:     opts.Engine,
		optimizer:  opts.Optimizer,
		rasterizer: opts.Rasterizer,
		store:      opts.Store,
		logger:     opts.Logger,
		metrics:    recorder,
	}, nil
}

// Render 执行一次完整渲染。SVG 变体总会在光栅化之前落盘；写盘失败只记录日志，
// 不影响返回值，调用方应直接使用 Result 中的字节响应，而不是回读缓存。
func (p *Pipeline) Render(ctx context.Context, req Request, wantRaster bool) (*Result, error) {
	key := req.Key()

	svg, err := p.engine.Typeset(ctx, req.Expression, req.Mode)
	if err != nil {
		return nil, err
	}

	svg = p.optimize(ctx, key, svg)
	p.persist(ctx, cache.Locator{Key: key, Format: cache.FormatSVG}, svg)

	result := &Result{Key: key, Vector: svg}
	if !wantRaster {
		return result, nil
	}

	if p.rasterizer == nil {
		return nil, ErrRasterUnavailable
	}
	dims, err := ParseDimensions(svg)
	if err != nil {
		return nil, err
	}
	png, err := p.rasterizer.Rasterize(ctx, svg, dims.Width, dims.Height)
	if err != nil {
		return nil, fmt.Errorf("rasterize %s: %w", key, err)
	}
	p.persist(ctx, cache.Locator{Key: key, Format: cache.FormatPNG}, png)

	result.Raster = png
	return result, nil
}

// optimize 在优化器失败时退回原始 SVG。
func (p *Pipeline) optimize(ctx context.Context, key cache.Key, svg []byte) []byte {
	if p.optimizer == nil {
		return svg
	}
	optimized, err := p.optimizer.Optimize(ctx, svg)
	if err != nil {
		p.logger.WithError(err).WithFields(logrus.Fields{
			"action":    "optimize",
			"cache_key": string(key),
		}).Warn("optimize_failed")
		return svg
	}
	return optimized
}

func (p *Pipeline) persist(ctx context.Context, locator cache.Locator, body []byte) {
	if _, err := p.store.Put(ctx, locator, bytes.NewReader(body)); err != nil {
		p.metrics.RecordPersistFailure(ctx, string(locator.Format))
		p.logger.WithError(err).WithFields(logrus.Fields{
			"action":    "cache_put",
			"cache_key": string(locator.Key),
			"format":    string(locator.Format),
		}).Error("cache_put_failed")
	}
}
