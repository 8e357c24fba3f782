// Package typesettest provides in-process stand-ins for the external
// typesetting tools, with call counters for cache assertions.
package typesettest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/any-hub/math-hub/internal/cache"
	"github.com/any-hub/math-hub/internal/typeset"
)

// BadCommand 是 Engine 会拒绝的表达式。
const BadCommand = `\badcmd`

// BadCommandDiagnostic 是拒绝 BadCommand 时返回的诊断。
const BadCommandDiagnostic = `TeX parse error: Undefined control sequence \badcmd`

// Engine 根据表达式生成确定性的 SVG，声明尺寸固定为 Width x Height ex。
type Engine struct {
	Width  string
	Height string
	calls  atomic.Int64
}

// NewEngine 返回声明 width="10.0ex" height="2.0ex" 的引擎。
func NewEngine() *Engine {
	return &Engine{Width: "10.0ex", Height: "2.0ex"}
}

func (e *Engine) Typeset(ctx context.Context, expression string, mode cache.Mode) ([]byte, error) {
	e.calls.Add(1)
	if expression == BadCommand {
		return nil, typeset.NewError(BadCommandDiagnostic)
	}
	svg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s"><!-- %s --><title>%s</title></svg>`,
		e.Width, e.Height, mode, expression)
	return []byte(svg), nil
}

// Calls 返回 Typeset 被调用的次数。
func (e *Engine) Calls() int {
	return int(e.calls.Load())
}

// Optimizer 给 SVG 添加固定前缀，Fail 为 true 时返回错误。
type Optimizer struct {
	Fail  bool
	calls atomic.Int64
}

// OptimizedMarker 是 Optimizer 输出的前缀。
const OptimizedMarker = "<!-- optimized -->"

func (o *Optimizer) Optimize(ctx context.Context, svg []byte) ([]byte, error) {
	o.calls.Add(1)
	if o.Fail {
		return nil, errors.New("optimizer crashed")
	}
	return append([]byte(OptimizedMarker), svg...), nil
}

// Calls 返回 Optimize 被调用的次数。
func (o *Optimizer) Calls() int {
	return int(o.calls.Load())
}

// Rasterizer 返回固定位图并记录每次调用的输入。
type Rasterizer struct {
	Output []byte
	Err    error

	mu    sync.Mutex
	calls []RasterCall
}

// RasterCall 记录一次光栅化调用。
type RasterCall struct {
	SVG    []byte
	Width  int
	Height int
}

// FixedPNG 是 Rasterizer 默认返回的位图内容。
var FixedPNG = []byte("\x89PNG\r\n\x1a\nstub")

func (r *Rasterizer) Rasterize(ctx context.Context, svg []byte, width, height int) ([]byte, error) {
	r.mu.Lock()
	r.calls = append(r.calls, RasterCall{SVG: append([]byte(nil), svg...), Width: width, Height: height})
	r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	if r.Output != nil {
		return r.Output, nil
	}
	return FixedPNG, nil
}

// Calls 返回所有光栅化调用的副本。
func (r *Rasterizer) Calls() []RasterCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RasterCall(nil), r.calls...)
}
