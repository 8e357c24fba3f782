package handler

import (
	"net/url"
	"strings"
	"unicode/utf8"
)

// decodeExpression 对原始查询串做百分号解码，'+' 按字面保留（不视为空格）。
// 整体解码失败时逐个处理：合法的 %XX 照常解码，非法的 % 序列原样保留。
func decodeExpression(rawQuery string) string {
	if decoded, err := url.PathUnescape(rawQuery); err == nil && utf8.ValidString(decoded) {
		return decoded
	}
	return lenientUnescape(rawQuery)
}

func lenientUnescape(raw string) string {
	buf := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] == '%' && i+2 < len(raw) && isHex(raw[i+1]) && isHex(raw[i+2]) {
			buf = append(buf, unhex(raw[i+1])<<4|unhex(raw[i+2]))
			i += 2
			continue
		}
		buf = append(buf, raw[i])
	}
	if utf8.Valid(buf) {
		return string(buf)
	}
	// 解码出的字节不是合法 UTF-8 时，每个非法字节替换为 U+FFFD。
	var sb strings.Builder
	sb.Grow(len(buf))
	for len(buf) > 0 {
		r, size := utf8.DecodeRune(buf)
		sb.WriteRune(r)
		buf = buf[size:]
	}
	return sb.String()
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
