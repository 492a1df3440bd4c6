package batchwriter

import (
	"fmt"

	"github.com/pkg/errors"
)

var ErrGroupTooLarge = errors.New("write group exceeds batch threshold")

// BatchCommitError 批次重试耗尽后仍提交失败
type BatchCommitError struct {
	BatchId  string
	Size     int
	Attempts int
	Err      error
}

func (e *BatchCommitError) Error() string {
	return fmt.Sprintf("commit batch %s (%d writes) failed after %d attempts: %v", e.BatchId, e.Size, e.Attempts, e.Err)
}

func (e *BatchCommitError) Unwrap() error {
	return e.Err
}
