package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// 默认外部命令。引擎读取 stdin 中的表达式并向 stdout 输出 SVG；
// 优化器与光栅化器同样走 stdin/stdout 管道。
var (
	defaultEngineCommand     = []string{"mathjax-svg", "--format", "{format}", "--font", "{font}"}
	defaultOptimizerCommand  = []string{"svgo", "--input", "-", "--output", "-"}
	defaultRasterizerCommand = []string{"rsvg-convert", "--format", "png", "--width", "{width}", "--height", "{height}"}
)

// flagKeys 将 CLI 标志名映射到配置键，标志显式设置时覆盖文件中的值。
var flagKeys = map[string]string{
	"host":             "ListenHost",
	"port":             "ListenPort",
	"font":             "Font",
	"inline-path":      "InlinePath",
	"display-path":     "DisplayPath",
	"inline-png-path":  "InlineRasterPath",
	"display-png-path": "DisplayRasterPath",
	"cache-dir":        "CachePath",
	"redirect-prefix":  "RedirectPrefix",
	"no-optimize":      "DisableOptimize",
	"log-level":        "LogLevel",
	"metrics":          "MetricsExporter",
}

// Load 读取可选的 TOML 配置文件，叠加 CLI 标志，注入默认值后做语义校验。
// path 为空时仅使用默认值与标志。
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置失败: %w", err)
		}
	}

	if err := bindFlags(v, flags); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(commandDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absCache, err := filepath.Abs(cfg.CachePath)
	if err != nil {
		return nil, fmt.Errorf("无法解析缓存目录: %w", err)
	}
	cfg.CachePath = absCache

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenHost", "127.0.0.1")
	v.SetDefault("ListenPort", 0)
	v.SetDefault("Font", "TeX")
	v.SetDefault("InlinePath", "/math")
	v.SetDefault("DisplayPath", "/display_math")
	v.SetDefault("InlineRasterPath", "/math.png")
	v.SetDefault("DisplayRasterPath", "/display_math.png")
	v.SetDefault("CachePath", "./cache")
	v.SetDefault("RedirectPrefix", "")
	v.SetDefault("DisableOptimize", false)
	v.SetDefault("EngineCommand", defaultEngineCommand)
	v.SetDefault("OptimizerCommand", defaultOptimizerCommand)
	v.SetDefault("RasterizerCommand", defaultRasterizerCommand)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("MetricsExporter", "none")
}

// bindFlags 只绑定被显式设置过的标志，避免标志默认值覆盖配置文件。
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	if flags == nil {
		return nil
	}
	var bindErr error
	flags.Visit(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || bindErr != nil {
			return
		}
		if err := v.BindPFlag(key, f); err != nil {
			bindErr = fmt.Errorf("绑定标志 --%s 失败: %w", f.Name, err)
		}
	})
	return bindErr
}

func applyDefaults(cfg *Config) {
	cfg.Font = normalizeFont(cfg.Font)
	cfg.ListenHost = strings.TrimSpace(cfg.ListenHost)
	if cfg.ListenHost == "" {
		cfg.ListenHost = "127.0.0.1"
	}
	cfg.MetricsExporter = strings.ToLower(strings.TrimSpace(cfg.MetricsExporter))
	if cfg.MetricsExporter == "" {
		cfg.MetricsExporter = "none"
	}
	if cfg.EngineCommand.Empty() {
		cfg.EngineCommand = append(CommandLine(nil), defaultEngineCommand...)
	}
}

// normalizeFont 兼容历史写法：STIX 实际对应 STIX-Web 字体。
func normalizeFont(font string) string {
	font = strings.TrimSpace(font)
	if font == "" {
		return "TeX"
	}
	if strings.EqualFold(font, "STIX") {
		return "STIX-Web"
	}
	return font
}

// commandDecodeHook 支持 CommandLine 同时接受字符串与数组两种写法。
func commandDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(CommandLine(nil))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return CommandLine(strings.Fields(v)), nil
		case []string:
			return CommandLine(append([]string(nil), v...)), nil
		case []interface{}:
			result := make(CommandLine, 0, len(v))
			for _, item := range v {
				str, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("命令参数必须是字符串: %v", item)
				}
				result = append(result, str)
			}
			return result, nil
		case CommandLine:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的命令类型: %T", v)
		}
	}
}
