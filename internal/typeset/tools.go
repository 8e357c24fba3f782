package typeset

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/any-hub/math-hub/internal/cache"
	"github.com/any-hub/math-hub/internal/config"
)

// Engine 将表达式排版为 SVG。表达式本身有误时返回 *Error。
type Engine interface {
	Typeset(ctx context.Context, expression string, mode cache.Mode) ([]byte, error)
}

// Optimizer 对 SVG 做体积优化，输入输出均为完整 SVG 文本。
type Optimizer interface {
	Optimize(ctx context.Context, svg []byte) ([]byte, error)
}

// Rasterizer 将 SVG 按给定像素尺寸转换为 PNG。
type Rasterizer interface {
	Rasterize(ctx context.Context, svg []byte, width, height int) ([]byte, error)
}

// engineFormats 对应排版引擎的输入格式名：inline 使用 inline-TeX，display 使用 TeX。
var engineFormats = map[cache.Mode]string{
	cache.ModeInline:  "inline-TeX",
	cache.ModeDisplay: "TeX",
}

// CommandEngine 通过外部命令排版，表达式写入 stdin，SVG 从 stdout 读取。
type CommandEngine struct {
	argv []string
	font string
}

// NewCommandEngine 基于 argv 模板构造引擎，font 会替换模板中的 {font}。
func NewCommandEngine(argv []string, font string) *CommandEngine {
	return &CommandEngine{argv: append([]string(nil), argv...), font: font}
}

// Typeset 调用引擎。引擎以非零状态退出时，stderr 被视为表达式诊断并包装为 *Error；
// 命令无法启动属于部署问题，原样返回。
func (e *CommandEngine) Typeset(ctx context.Context, expression string, mode cache.Mode) ([]byte, error) {
	args := expandArgs(e.argv, map[string]string{
		"mode":   string(mode),
		"format": engineFormats[mode],
		"font":   e.font,
	})
	out, err := runCommand(ctx, "engine", args, []byte(expression))
	if err != nil {
		var toolErr *ToolError
		var exitErr *exec.ExitError
		if errors.As(err, &toolErr) && errors.As(toolErr.Err, &exitErr) {
			return nil, NewError(toolErr.Stderr)
		}
		return nil, err
	}
	if len(out) == 0 {
		return nil, NewError("engine produced no output")
	}
	return out, nil
}

// CommandOptimizer 通过外部命令优化 SVG。
type CommandOptimizer struct {
	argv []string
}

// NewCommandOptimizer 构造优化器。
func NewCommandOptimizer(argv []string) *CommandOptimizer {
	return &CommandOptimizer{argv: append([]string(nil), argv...)}
}

func (o *CommandOptimizer) Optimize(ctx context.Context, svg []byte) ([]byte, error) {
	out, err := runCommand(ctx, "optimizer", o.argv, svg)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("optimizer produced no output")
	}
	return out, nil
}

// CommandRasterizer 通过外部命令光栅化 SVG。
type CommandRasterizer struct {
	argv []string
}

// NewCommandRasterizer 构造光栅化器，{width}/{height} 在每次调用时替换。
func NewCommandRasterizer(argv []string) *CommandRasterizer {
	return &CommandRasterizer{argv: append([]string(nil), argv...)}
}

func (r *CommandRasterizer) Rasterize(ctx context.Context, svg []byte, width, height int) ([]byte, error) {
	args := expandArgs(r.argv, map[string]string{
		"width":  strconv.Itoa(width),
		"height": strconv.Itoa(height),
	})
	out, err := runCommand(ctx, "rasterizer", args, svg)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("rasterizer produced no output")
	}
	return out, nil
}

// Capabilities 记录启动时探测到的可选工具可用性，运行期间不再变化。
type Capabilities struct {
	HasOptimizer  bool `json:"has_optimizer"`
	HasRasterizer bool `json:"has_rasterizer"`
}

// Tools 汇总探测后的外部工具；不可用的可选工具为 nil。
type Tools struct {
	Engine       Engine
	Optimizer    Optimizer
	Rasterizer   Rasterizer
	Capabilities Capabilities
	// Missing 记录被配置但未找到的可选工具，供启动日志输出。
	Missing map[string]error
}

// lookPath 可在测试中替换。
var lookPath = exec.LookPath

// Probe 在启动阶段检查外部命令是否存在。引擎缺失直接返回错误；
// 优化器/光栅化器缺失只是降级，记录在 Missing 中。
func Probe(cfg *config.Config) (*Tools, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if cfg.EngineCommand.Empty() {
		return nil, fmt.Errorf("engine: %w", ErrToolUnavailable)
	}
	if _, err := lookPath(cfg.EngineCommand[0]); err != nil {
		return nil, fmt.Errorf("engine %s: %w", cfg.EngineCommand[0], err)
	}

	tools := &Tools{
		Engine:  NewCommandEngine(cfg.EngineCommand, cfg.Font),
		Missing: map[string]error{},
	}

	if !cfg.DisableOptimize && !cfg.OptimizerCommand.Empty() {
		if _, err := lookPath(cfg.OptimizerCommand[0]); err != nil {
			tools.Missing["optimizer"] = err
		} else {
			tools.Optimizer = NewCommandOptimizer(cfg.OptimizerCommand)
			tools.Capabilities.HasOptimizer = true
		}
	}

	if !cfg.RasterizerCommand.Empty() {
		if _, err := lookPath(cfg.RasterizerCommand[0]); err != nil {
			tools.Missing["rasterizer"] = err
		} else {
			tools.Rasterizer = NewCommandRasterizer(cfg.RasterizerCommand)
			tools.Capabilities.HasRasterizer = true
		}
	}

	return tools, nil
}
