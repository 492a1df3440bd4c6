package docstore

import (
	"context"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/pkg/errors"
)

// PebbleStore 基于 pebble 的嵌入式文档存储
// 单进程部署或测试使用, 合并写需要读-改-写, 因此写路径串行化
type PebbleStore struct {
	mu sync.Mutex
	db *pebble.DB
}

// OpenPebble 打开 dir 下的 pebble 库
func OpenPebble(dir string) (*PebbleStore, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrap(err, "failed on open pebble")
	}
	return &PebbleStore{db: db}, nil
}

// OpenPebbleInMem 打开内存文件系统上的 pebble, 进程退出即丢失
func OpenPebbleInMem() (*PebbleStore, error) {
	db, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		return nil, errors.Wrap(err, "failed on open in-memory pebble")
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Get(_ context.Context, key string) ([]byte, error) {
	val, closer, err := s.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "failed on get %s", key)
	}
	defer closer.Close()

	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (s *PebbleStore) Set(ctx context.Context, key string, payload []byte, opts SetOptions) error {
	return s.Commit(ctx, []Write{SetWrite(key, payload, opts)})
}

func (s *PebbleStore) Delete(ctx context.Context, key string) error {
	return s.Commit(ctx, []Write{DeleteWrite(key)})
}

// Commit 在一个 indexed batch 中应用全部写入, 合并写可以读到同批次之前的写
func (s *PebbleStore) Commit(_ context.Context, writes []Write) error {
	if err := validate(writes); err != nil {
		return err
	}
	if len(writes) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batch := s.db.NewIndexedBatch()
	defer batch.Close()

	for _, w := range writes {
		key := []byte(w.Key)
		if w.Delete {
			if err := batch.Delete(key, nil); err != nil {
				return errors.Wrapf(err, "failed on delete %s", w.Key)
			}
			continue
		}

		payload := w.Payload
		if w.Merge {
			existing, err := batchGet(batch, key)
			if err != nil {
				return err
			}
			if payload, err = MergePayload(existing, w.Payload); err != nil {
				return err
			}
		}
		if err := batch.Set(key, payload, nil); err != nil {
			return errors.Wrapf(err, "failed on set %s", w.Key)
		}
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return errors.Wrap(err, "failed on commit pebble batch")
	}
	return nil
}

// List 返回以 prefix 开头的全部文档, 按 key 升序
func (s *PebbleStore) List(_ context.Context, prefix string) ([]Document, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: prefixEnd([]byte(prefix)),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed on create pebble iterator")
	}
	defer iter.Close()

	var docs []Document
	for iter.First(); iter.Valid(); iter.Next() {
		val := iter.Value()
		payload := make([]byte, len(val))
		copy(payload, val)
		docs = append(docs, Document{Key: string(iter.Key()), Payload: payload})
	}
	if err := iter.Error(); err != nil {
		return nil, errors.Wrap(err, "failed on iterate pebble")
	}
	return docs, nil
}

func (s *PebbleStore) Close() error {
	return s.db.Close()
}

func batchGet(batch *pebble.Batch, key []byte) ([]byte, error) {
	val, closer, err := batch.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed on read %s", key)
	}
	defer closer.Close()

	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

// prefixEnd 返回比所有以 prefix 开头的 key 都大的最小 key
func prefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
