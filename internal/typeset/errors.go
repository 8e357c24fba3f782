package typeset

import (
	"errors"
	"strings"
)

// Error 表示排版引擎拒绝了表达式（或输出了无法使用的结果），对应客户端 400。
// Diagnostic 保留引擎给出的原始诊断文本。
type Error struct {
	Diagnostic string
}

func (e *Error) Error() string {
	return e.Diagnostic
}

// NewError 构造排版错误，空诊断时给出统一的兜底文本。
func NewError(diagnostic string) *Error {
	diagnostic = strings.TrimSpace(diagnostic)
	if diagnostic == "" {
		diagnostic = "typeset failed"
	}
	return &Error{Diagnostic: diagnostic}
}

// AsError 判断 err 链中是否包含排版错误。
func AsError(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// ErrToolUnavailable 表示可选工具未安装或被禁用。
var ErrToolUnavailable = errors.New("tool unavailable")
