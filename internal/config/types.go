package config

import (
	"strconv"
	"strings"
)

// CommandLine 描述一个外部命令（argv 模板），允许在 TOML 中写成字符串或数组。
// 模板中的 {mode}/{format}/{font}/{width}/{height} 会在调用时替换为实际值。
type CommandLine []string

// Empty 表示命令未配置。
func (c CommandLine) Empty() bool {
	return len(c) == 0 || strings.TrimSpace(c[0]) == ""
}

// String 输出便于日志展示的命令行。
func (c CommandLine) String() string {
	return strings.Join(c, " ")
}

// Config 是 TOML 文件 + CLI 标志合并后的整体结构，启动后只读。
type Config struct {
	ListenHost string `mapstructure:"ListenHost"`
	ListenPort int    `mapstructure:"ListenPort"`

	// Font 对应排版引擎的 Web 字体，STIX 会被规范化为 STIX-Web。
	Font string `mapstructure:"Font"`

	InlinePath        string `mapstructure:"InlinePath"`
	DisplayPath       string `mapstructure:"DisplayPath"`
	InlineRasterPath  string `mapstructure:"InlineRasterPath"`
	DisplayRasterPath string `mapstructure:"DisplayRasterPath"`

	CachePath string `mapstructure:"CachePath"`
	// RedirectPrefix 非空时命中缓存改为输出 X-Accel-Redirect，由前置代理直接发送文件。
	RedirectPrefix  string `mapstructure:"RedirectPrefix"`
	DisableOptimize bool   `mapstructure:"DisableOptimize"`

	EngineCommand     CommandLine `mapstructure:"EngineCommand"`
	OptimizerCommand  CommandLine `mapstructure:"OptimizerCommand"`
	RasterizerCommand CommandLine `mapstructure:"RasterizerCommand"`

	LogLevel      string `mapstructure:"LogLevel"`
	LogFilePath   string `mapstructure:"LogFilePath"`
	LogMaxSize    int    `mapstructure:"LogMaxSize"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogCompress   bool   `mapstructure:"LogCompress"`

	MetricsExporter string `mapstructure:"MetricsExporter"`
}

// ListenAddress 返回 host:port 形式的监听地址。
func (c *Config) ListenAddress() string {
	host := c.ListenHost
	if strings.Contains(host, ":") && !strings.HasPrefix(host, "[") {
		host = "[" + host + "]"
	}
	return host + ":" + strconv.Itoa(c.ListenPort)
}

// DeliveryMode 输出 `delegated` 或 `direct`，供日志与诊断接口使用。
func (c *Config) DeliveryMode() string {
	if c.RedirectPrefix != "" {
		return "delegated"
	}
	return "direct"
}

// RouteSpec 是一条路径到 (mode, format) 的静态声明，尚未结合外部工具可用性。
type RouteSpec struct {
	Path   string
	Mode   string
	Format string
}

// RouteSpecs 返回所有非空路径的路由声明，顺序固定为 inline/display，再到 raster 变体。
func (c *Config) RouteSpecs() []RouteSpec {
	candidates := []RouteSpec{
		{Path: c.InlinePath, Mode: "inline", Format: "svg"},
		{Path: c.DisplayPath, Mode: "display", Format: "svg"},
		{Path: c.InlineRasterPath, Mode: "inline", Format: "png"},
		{Path: c.DisplayRasterPath, Mode: "display", Format: "png"},
	}
	result := make([]RouteSpec, 0, len(candidates))
	for _, spec := range candidates {
		if spec.Path == "" {
			continue
		}
		result = append(result, spec)
	}
	return result
}

// routeField 拼接路由字段的名称，便于 FieldError 定位。
func routeField(spec RouteSpec) string {
	switch {
	case spec.Mode == "inline" && spec.Format == "svg":
		return "InlinePath"
	case spec.Mode == "display" && spec.Format == "svg":
		return "DisplayPath"
	case spec.Mode == "inline":
		return "InlineRasterPath"
	default:
		return "DisplayRasterPath"
	}
}
