package utils

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Retry 通用重试函数
// @param name: 操作名称(用于错误提示)
// @param attempts: 最大尝试次数
// @param sleep: 每次失败后的等待间隔, 最后一次失败后不再等待
// @param fn: 需要执行的函数, 返回 error 表示失败需要重试
// @return int: 实际尝试次数
// @return error: 所有尝试都失败时返回最后一次的错误
func Retry(ctx context.Context, name string, attempts int, sleep time.Duration, fn func() error) (int, error) {
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if lastErr = fn(); lastErr == nil {
			return i + 1, nil
		}
		if i == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return i + 1, errors.Wrapf(ctx.Err(), "%s canceled after %d attempts: %v", name, i+1, lastErr)
		case <-time.After(sleep):
		}
	}

	return attempts, errors.Wrapf(lastErr, "%s retry time over", name)
}
