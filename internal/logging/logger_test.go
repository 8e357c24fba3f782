package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/any-hub/math-hub/internal/config"
	"github.com/any-hub/math-hub/internal/version"
)

func TestConfigureDefaultsToStdout(t *testing.T) {
	logger, err := InitLogger(config.Config{LogLevel: "info"})
	if err != nil {
		t.Fatalf("配置失败: %v", err)
	}
	if logger.Out != os.Stdout {
		t.Fatalf("未指定文件时应输出到 stdout")
	}
}

func TestInitLoggerFallbackOnPermissionDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root 不受目录权限限制")
	}
	dir := t.TempDir()
	blocked := filepath.Join(dir, "blocked")
	if err := os.Mkdir(blocked, 0o755); err != nil {
		t.Fatalf("创建目录失败: %v", err)
	}
	if err := os.Chmod(blocked, 0o000); err != nil {
		t.Fatalf("设置目录权限失败: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(blocked, 0o755) })

	cfg := config.Config{
		LogLevel:    "info",
		LogFilePath: filepath.Join(blocked, "sub", "math-hub.log"),
	}
	logger, err := InitLogger(cfg)
	if err != nil {
		t.Fatalf("初始化不应失败: %v", err)
	}
	if logger.Out != os.Stdout {
		t.Fatalf("fallback 时应退回 stdout")
	}
}

func TestConfigureCreatesRotatingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "math-hub.log")
	cfg := config.Config{LogLevel: "debug", LogFilePath: path}
	logger, err := InitLogger(cfg)
	if err != nil {
		t.Fatalf("配置失败: %v", err)
	}
	logger.Info("test")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("预期创建日志文件: %v", err)
	}
}

func TestInitLoggerRejectsUnknownLevel(t *testing.T) {
	if _, err := InitLogger(config.Config{LogLevel: "chatty"}); err == nil {
		t.Fatalf("未知日志级别应返回错误")
	}
}

func TestRequestFields(t *testing.T) {
	fields := RequestFields("/math", "inline", "svg", "inline_abc", true)
	if fields["cache_key"] != "inline_abc" || fields["cache_hit"] != true {
		t.Fatalf("unexpected fields: %v", fields)
	}
	if fields["route"] != "/math" {
		t.Fatalf("route 字段缺失: %v", fields)
	}
}

func TestInitLoggerAddsServiceFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "math-hub.log")
	cfg := config.Config{
		LogLevel:       "info",
		LogFilePath:    path,
		Font:           "STIX-Web",
		RedirectPrefix: "/_math_cache/",
	}
	logger, err := InitLogger(cfg)
	if err != nil {
		t.Fatalf("配置失败: %v", err)
	}
	logger.WithField("action", "render").Info("render_complete")
	logger.WithField("version", "explicit").Info("startup")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取日志失败: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("期望 2 行日志，得到 %d", len(lines))
	}

	var first map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("日志不是合法 JSON: %v", err)
	}
	if first["service"] != ServiceName || first["delivery_mode"] != "delegated" || first["font"] != "STIX-Web" {
		t.Fatalf("缺少实例字段: %v", first)
	}
	if first["version"] != version.Version {
		t.Fatalf("version 字段应为 %s，得到 %v", version.Version, first["version"])
	}

	var second map[string]interface{}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("日志不是合法 JSON: %v", err)
	}
	if second["version"] != "explicit" {
		t.Fatalf("显式字段不应被覆盖，得到 %v", second["version"])
	}
}
