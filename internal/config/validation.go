package config

import (
	"errors"
	"fmt"
	"strings"
)

// supportedFonts 列出排版引擎支持的 SVG Web 字体。
var supportedFonts = map[string]struct{}{
	"TeX":          {},
	"STIX-Web":     {},
	"Asana-Math":   {},
	"Neo-Euler":    {},
	"Gyre-Pagella": {},
	"Gyre-Termes":  {},
	"Latin-Modern": {},
}

const supportedFontList = "TeX|STIX|STIX-Web|Asana-Math|Neo-Euler|Gyre-Pagella|Gyre-Termes|Latin-Modern"

var supportedExporters = map[string]struct{}{
	"none":       {},
	"prometheus": {},
	"stdout":     {},
}

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		return newFieldError("ListenPort", "必须在 1-65535")
	}
	if c.CachePath == "" {
		return newFieldError("CachePath", "不能为空")
	}
	if _, ok := supportedFonts[c.Font]; !ok {
		return newFieldError("Font", "仅支持 "+supportedFontList)
	}
	if c.EngineCommand.Empty() {
		return newFieldError("EngineCommand", "不能为空")
	}
	if c.RedirectPrefix != "" && !strings.HasPrefix(c.RedirectPrefix, "/") {
		return newFieldError("RedirectPrefix", "必须以 / 开头")
	}
	if _, ok := supportedExporters[c.MetricsExporter]; !ok {
		return newFieldError("MetricsExporter", "仅支持 none/prometheus/stdout")
	}

	specs := c.RouteSpecs()
	if len(specs) == 0 {
		return errors.New("至少需要配置一个渲染路径")
	}

	seen := map[string]string{}
	for _, spec := range specs {
		field := routeField(spec)
		if err := validateRoutePath(spec.Path); err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
		if prior, exists := seen[spec.Path]; exists {
			return newFieldError(field, fmt.Sprintf("与 %s 重复", prior))
		}
		seen[spec.Path] = field
	}

	return nil
}

func validateRoutePath(path string) error {
	if !strings.HasPrefix(path, "/") {
		return errors.New("路径必须以 / 开头")
	}
	if strings.ContainsAny(path, "?# ") {
		return errors.New("路径不允许包含 ?、# 或空格")
	}
	if strings.HasPrefix(path, "/-/") {
		return errors.New("/-/ 前缀保留给诊断接口")
	}
	return nil
}
