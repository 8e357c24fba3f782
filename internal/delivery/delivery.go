package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/any-hub/math-hub/internal/cache"
)

// RedirectHeader 是前置代理（nginx）识别的内部跳转头。
const RedirectHeader = "X-Accel-Redirect"

// Response 描述缓存命中时应写回的响应，与具体 HTTP 框架无关。
type Response struct {
	Status      int
	ContentType string
	Headers     map[string]string
	Body        []byte
}

// Strategy 决定缓存命中时是直接返回字节，还是交给前置代理发送文件。
type Strategy interface {
	Deliver(ctx context.Context, locator cache.Locator, contentType string) (*Response, error)
	Mode() string
}

// New 根据 redirectPrefix 选择策略：为空时直接返回，否则走内部跳转。
func New(store cache.Store, redirectPrefix string) (Strategy, error) {
	if store == nil {
		return nil, errors.New("cache store is required")
	}
	if redirectPrefix == "" {
		return &Direct{store: store}, nil
	}
	return &Delegated{store: store, prefix: redirectPrefix}, nil
}

// Direct 读取缓存文件并将其作为响应体返回。
type Direct struct {
	store cache.Store
}

func (d *Direct) Mode() string {
	return "direct"
}

// Deliver 读取失败（包括 ErrNotFound）原样返回，由调用方决定状态码。
func (d *Direct) Deliver(ctx context.Context, locator cache.Locator, contentType string) (*Response, error) {
	result, err := d.store.Get(ctx, locator)
	if err != nil {
		return nil, err
	}
	defer result.Reader.Close()

	body, err := io.ReadAll(result.Reader)
	if err != nil {
		return nil, fmt.Errorf("read cache entry %s: %w", d.store.FileName(locator), err)
	}
	return &Response{
		Status:      http.StatusOK,
		ContentType: contentType,
		Body:        body,
	}, nil
}

// Delegated 只做存在性检查，正文由前置代理根据内部路径读取。
// 代理的 internal location 必须指向同一个缓存目录。
type Delegated struct {
	store  cache.Store
	prefix string
}

func (d *Delegated) Mode() string {
	return "delegated"
}

func (d *Delegated) Deliver(ctx context.Context, locator cache.Locator, contentType string) (*Response, error) {
	if !d.store.Exists(ctx, locator) {
		return nil, cache.ErrNotFound
	}
	return &Response{
		Status:      http.StatusOK,
		ContentType: contentType,
		Headers: map[string]string{
			RedirectHeader: d.prefix + d.store.FileName(locator),
		},
	}, nil
}
