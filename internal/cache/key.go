package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Mode 表示排版上下文：inline 随文本排版，display 独立成块。
type Mode string

const (
	ModeInline  Mode = "inline"
	ModeDisplay Mode = "display"
)

// ParseMode 将配置中的字符串转换为 Mode。
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModeInline:
		return ModeInline, nil
	case ModeDisplay:
		return ModeDisplay, nil
	default:
		return "", fmt.Errorf("unsupported mode: %q", raw)
	}
}

// Format 表示缓存条目的变体，同时决定文件后缀与 Content-Type。
type Format string

const (
	FormatSVG Format = "svg"
	FormatPNG Format = "png"
)

// ParseFormat 将配置中的字符串转换为 Format。
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case FormatSVG:
		return FormatSVG, nil
	case FormatPNG:
		return FormatPNG, nil
	default:
		return "", fmt.Errorf("unsupported format: %q", raw)
	}
}

// ContentType 返回该变体对外响应使用的 MIME 类型。
func (f Format) ContentType() string {
	switch f {
	case FormatSVG:
		return "image/svg+xml; charset=utf-8"
	case FormatPNG:
		return "image/png"
	default:
		return "application/octet-stream"
	}
}

// Key 是 <mode>_<sha256 hex> 形式的缓存键，同时作为文件名主体。
type Key string

// DeriveKey 由表达式与模式计算缓存键。mode 同时参与摘要输入与文件名前缀，
// 因此 inline/display 的同一表达式不会互相覆盖。任何文本（包括空串）都是合法输入。
func DeriveKey(expression string, mode Mode) Key {
	h := sha256.New()
	h.Write([]byte(mode))
	h.Write([]byte{0})
	h.Write([]byte(expression))
	return Key(string(mode) + "_" + hex.EncodeToString(h.Sum(nil)))
}

// String 实现 fmt.Stringer。
func (k Key) String() string {
	return string(k)
}
