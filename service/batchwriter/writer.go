package batchwriter

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/zeromicro/go-zero/core/threading"
	"go.uber.org/zap"

	"github.com/ProjectsTask/EasySwapOrderBook/common/utils"
	"github.com/ProjectsTask/EasySwapOrderBook/logger/xzap"
	"github.com/ProjectsTask/EasySwapOrderBook/stores/docstore"
)

const (
	DefaultThreshold     = docstore.MaxBatchSize // 单批最大写入数, 受存储单次提交上限约束
	DefaultAttempts      = 3                     // 提交最大尝试次数
	DefaultRetryInterval = time.Second           // 同一文档每秒最多写一次, 重试间隔不低于 1s
)

type Option func(w *Writer)

func WithThreshold(n int) Option {
	return func(w *Writer) {
		if n > 0 {
			w.threshold = utils.Min(n, docstore.MaxBatchSize)
		}
	}
}

func WithAttempts(n int) Option {
	return func(w *Writer) {
		if n > 0 {
			w.attempts = n
		}
	}
}

func WithRetryInterval(d time.Duration) Option {
	return func(w *Writer) {
		if d >= 0 {
			w.retryInterval = d
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(w *Writer) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// Writer 批量写入器
// 写入先累积在当前批次中, 达到阈值或 Flush/Apply 时把当前批次摘下来交给后台提交;
// 所有摘下的批次串成一条链, 严格按摘下顺序提交, 每个批次只提交一次
type Writer struct {
	store         docstore.Store
	threshold     int
	attempts      int
	retryInterval time.Duration
	logger        *zap.Logger

	mu      sync.Mutex
	batch   []docstore.Write
	tail    *pendingBatch   // 最近摘下的批次
	pending []*pendingBatch // 已摘下且尚未确认的批次: 提交中, 或失败后尚未被 Flush 报告
}

// pendingBatch 一个已摘下的批次, done 关闭后 err 可读
type pendingBatch struct {
	id       string
	done     chan struct{}
	err      error
	reported bool // 由 w.mu 保护
}

func (p *pendingBatch) finished() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func New(store docstore.Store, opts ...Option) *Writer {
	w := &Writer{
		store:         store,
		threshold:     DefaultThreshold,
		attempts:      DefaultAttempts,
		retryInterval: DefaultRetryInterval,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = xzap.WithContext(context.Background())
	}
	return w
}

// Add 追加一条写入, 当前批次已满时先把它交给后台提交
func (w *Writer) Add(ctx context.Context, key string, payload []byte, opts docstore.SetOptions) error {
	if key == "" {
		return docstore.ErrEmptyKey
	}
	return w.AddGroup(ctx, docstore.SetWrite(key, payload, opts))
}

// Delete 追加一条删除
func (w *Writer) Delete(ctx context.Context, key string) error {
	if key == "" {
		return docstore.ErrEmptyKey
	}
	return w.AddGroup(ctx, docstore.DeleteWrite(key))
}

// AddGroup 追加一组必须在同一次提交中生效的写入
// 当前批次放不下整组时先把当前批次交给后台提交
func (w *Writer) AddGroup(ctx context.Context, writes ...docstore.Write) error {
	if err := w.checkGroup(writes); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.appendLocked(ctx, writes)
	return nil
}

// Apply 追加一组写入并等待包含它的批次提交完成, 返回该批次的提交结果
// 与其他 goroutine 并发写入时, 只有 Apply 能确认 "这一组写入已经生效"
func (w *Writer) Apply(ctx context.Context, writes ...docstore.Write) error {
	if err := w.checkGroup(writes); err != nil {
		return err
	}
	if len(writes) == 0 {
		return nil
	}

	w.mu.Lock()
	w.appendLocked(ctx, writes)
	p := w.detachLocked(ctx)
	w.mu.Unlock()

	if err := wait(ctx, p); err != nil {
		return err
	}
	return p.err
}

func (w *Writer) checkGroup(writes []docstore.Write) error {
	if len(writes) > w.threshold {
		return errors.Wrapf(ErrGroupTooLarge, "group size %d, threshold %d", len(writes), w.threshold)
	}
	for _, write := range writes {
		if write.Key == "" {
			return docstore.ErrEmptyKey
		}
	}
	return nil
}

// appendLocked 调用方持有 w.mu
func (w *Writer) appendLocked(ctx context.Context, writes []docstore.Write) {
	if len(writes) == 0 {
		return
	}
	if len(w.batch) > 0 && len(w.batch)+len(writes) > w.threshold {
		w.detachLocked(ctx)
	}
	w.batch = append(w.batch, writes...)
}

// Pending 当前批次中尚未提交的写入数
func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.batch)
}

// Flush 提交当前批次
//  1. 摘下当前批次, 之后的写入进入新批次
//  2. 等待链上在此之前摘下的全部批次 (包括其他调用方摘下, 仍在提交中的批次) 结束
//  3. 返回这些批次中的失败, 以及此前后台失败但还没有被 Flush 报告过的批次
//
// 同一次失败可能同时报告给并发的多个 Flush, 之后的 Flush 不再重复报告
func (w *Writer) Flush(ctx context.Context) error {
	w.mu.Lock()
	target := w.detachLocked(ctx)
	watched := make([]*pendingBatch, 0, len(w.pending))
	for _, p := range w.pending {
		if !p.reported {
			watched = append(watched, p)
		}
	}
	w.mu.Unlock()

	if target == nil {
		return nil
	}
	if err := wait(ctx, target); err != nil {
		return err
	}

	var errs []error
	w.mu.Lock()
	for _, p := range watched {
		if p.err != nil {
			errs = append(errs, p.err)
			p.reported = true
		}
	}
	w.pruneLocked()
	w.mu.Unlock()

	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		return errors.Wrapf(errs[0], "%d batch commits failed", len(errs))
	}
}

// Close 提交剩余写入
func (w *Writer) Close(ctx context.Context) error {
	return w.Flush(ctx)
}

// detachLocked 调用方持有 w.mu
// 摘下当前批次并挂到提交链尾部, 返回链尾; 当前批次为空时直接返回现有链尾 (可能为 nil)
func (w *Writer) detachLocked(ctx context.Context) *pendingBatch {
	if len(w.batch) == 0 {
		return w.tail
	}

	batch := w.batch
	w.batch = nil

	p := &pendingBatch{id: uuid.NewString(), done: make(chan struct{})}
	prev := w.tail
	w.tail = p
	w.pruneLocked()
	w.pending = append(w.pending, p)

	ctx = context.WithoutCancel(ctx)
	threading.GoSafe(func() {
		defer func() {
			if r := recover(); r != nil {
				p.err = errors.Errorf("commit batch %s panic: %v", p.id, r)
			}
			close(p.done)
		}()
		if prev != nil {
			<-prev.done
		}
		p.err = w.commit(ctx, p.id, batch)
	})
	return p
}

// pruneLocked 丢弃已成功或失败已报告的批次
func (w *Writer) pruneLocked() {
	kept := w.pending[:0]
	for _, p := range w.pending {
		if p.finished() && (p.err == nil || p.reported) {
			continue
		}
		kept = append(kept, p)
	}
	for i := len(kept); i < len(w.pending); i++ {
		w.pending[i] = nil
	}
	w.pending = kept
}

// wait 等待批次 (及链上之前的全部批次) 提交结束
func wait(ctx context.Context, p *pendingBatch) error {
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return errors.Wrapf(ctx.Err(), "wait for batch %s", p.id)
	}
}

func (w *Writer) commit(ctx context.Context, batchId string, batch []docstore.Write) error {
	attempts, err := utils.Retry(ctx, "commit batch "+batchId, w.attempts, w.retryInterval, func() error {
		if err := w.store.Commit(ctx, batch); err != nil {
			w.logger.Warn("batch commit attempt failed",
				zap.String("batch_id", batchId),
				zap.Int("size", len(batch)),
				zap.Error(err))
			return err
		}
		return nil
	})
	if err != nil {
		w.logger.Error("failed on commit batch",
			zap.String("batch_id", batchId),
			zap.Int("size", len(batch)),
			zap.Int("attempts", attempts),
			zap.Error(err))
		return &BatchCommitError{BatchId: batchId, Size: len(batch), Attempts: attempts, Err: err}
	}

	w.logger.Debug("batch committed",
		zap.String("batch_id", batchId),
		zap.Int("size", len(batch)),
		zap.Int("attempts", attempts))
	return nil
}
