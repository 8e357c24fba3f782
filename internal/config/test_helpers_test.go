package config

import (
	"os"
	"path/filepath"
	"testing"
)

// testConfigPath 返回 testdata 下的 TOML 样例路径。
func testConfigPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join("testdata", name)
}

// writeTempConfig 将内容写入临时 config.toml 并返回路径。
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("写入临时配置失败: %v", err)
	}
	return path
}

// mustLoadTOML 写入临时配置并加载，缓存目录固定落在测试临时目录下。
func mustLoadTOML(t *testing.T, content string) *Config {
	t.Helper()
	cacheDir := filepath.ToSlash(t.TempDir())
	cfg, err := Load(writeTempConfig(t, "CachePath = \""+cacheDir+"\"\n"+content), nil)
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	return cfg
}
