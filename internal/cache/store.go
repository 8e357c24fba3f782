package cache

import (
	"context"
	"errors"
	"io"
	"time"
)

// Store 负责管理磁盘缓存的读写。磁盘布局遵循：
//
//	<CachePath>/<mode>_<hex>.<svg|png>          # 渲染结果
//	<CachePath>/<mode>_<hex>.<svg|png>.*.tmp    # 写入中的临时文件
//
// 条目一经写入即不可变；Store 不提供删除，淘汰交由外部进程处理。
type Store interface {
	// Exists 仅做 stat 检查。除 "不存在" 以外的 stat 错误视为存在，
	// 让随后的 Get 将底层错误暴露出来。
	Exists(ctx context.Context, locator Locator) bool

	// Get 返回一个可流式读取的缓存条目。若不存在则返回 ErrNotFound。
	Get(ctx context.Context, locator Locator) (*ReadResult, error)

	// Put 将渲染结果写入缓存。实现需通过同目录临时文件 + rename 保证原子性，
	// 并在失败时清理临时文件。并发写入同一条目时不加锁，最终文件总是某一次完整写入。
	Put(ctx context.Context, locator Locator, body io.Reader) (*Entry, error)

	// FileName 返回条目在缓存目录中的文件名，供前置代理内部跳转使用。
	FileName(locator Locator) string
}

// Locator 唯一定位一个缓存条目（Key + Format）。
type Locator struct {
	Key    Key
	Format Format
}

// Entry 表示一次缓存命中结果，包含绝对文件路径及文件信息。
type Entry struct {
	Locator   Locator `json:"locator"`
	FilePath  string  `json:"file_path"`
	SizeBytes int64   `json:"size_bytes"`
	ModTime   time.Time
}

// ReadResult 组合 Entry 与正文 Reader，便于投递层直接将 Body 流式返回。
type ReadResult struct {
	Entry  Entry
	Reader io.ReadSeekCloser
}

// ErrNotFound 表示缓存不存在。
var ErrNotFound = errors.New("cache entry not found")

// ErrInvalidLocator 表示 Locator 缺少必要字段或包含非法字符。
var ErrInvalidLocator = errors.New("invalid cache locator")
