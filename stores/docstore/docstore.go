package docstore

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// MaxBatchSize 单次 Commit 允许的最大写入条数
const MaxBatchSize = 500

var (
	ErrNotFound      = errors.New("document not found")
	ErrBatchTooLarge = errors.New("batch exceeds max batch size")
	ErrEmptyKey      = errors.New("document key is empty")
)

// SetOptions 写入选项
// Merge 为 true 时按顶层字段合并到已有文档, 否则整体覆盖
type SetOptions struct {
	Merge bool
}

// Write 批量提交中的一条写操作
type Write struct {
	Key     string
	Payload []byte
	Merge   bool
	Delete  bool
}

// Document 文档 key 与内容
type Document struct {
	Key     string
	Payload []byte
}

// Store 文档存储
// Commit 必须原子地应用全部写入: 要么全部可见, 要么全部不可见
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, payload []byte, opts SetOptions) error
	Delete(ctx context.Context, key string) error
	Commit(ctx context.Context, writes []Write) error
	List(ctx context.Context, prefix string) ([]Document, error)
	Close() error
}

// SetWrite 构造一条写入
func SetWrite(key string, payload []byte, opts SetOptions) Write {
	return Write{Key: key, Payload: payload, Merge: opts.Merge}
}

// DeleteWrite 构造一条删除
func DeleteWrite(key string) Write {
	return Write{Key: key, Delete: true}
}

// Join 用 "/" 拼接文档路径
func Join(parts ...string) string {
	return strings.Join(parts, "/")
}

// MergePayload 将 update 的顶层字段覆盖到 existing 上
// existing 为空时直接返回 update
func MergePayload(existing, update []byte) ([]byte, error) {
	if len(existing) == 0 {
		return update, nil
	}

	var base map[string]json.RawMessage
	if err := json.Unmarshal(existing, &base); err != nil {
		return nil, errors.Wrap(err, "failed on decode existing document")
	}
	var patch map[string]json.RawMessage
	if err := json.Unmarshal(update, &patch); err != nil {
		return nil, errors.Wrap(err, "failed on decode document update")
	}
	if base == nil {
		base = make(map[string]json.RawMessage, len(patch))
	}
	for k, v := range patch {
		base[k] = v
	}

	merged, err := json.Marshal(base)
	if err != nil {
		return nil, errors.Wrap(err, "failed on encode merged document")
	}
	return merged, nil
}

func validate(writes []Write) error {
	if len(writes) > MaxBatchSize {
		return errors.Wrapf(ErrBatchTooLarge, "size %d", len(writes))
	}
	for _, w := range writes {
		if w.Key == "" {
			return ErrEmptyKey
		}
	}
	return nil
}
