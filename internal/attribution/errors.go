package attribution

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SourceUnavailableError means the link's time series could not be loaded or
// was malformed. The previous persisted partition stays untouched.
type SourceUnavailableError struct {
	LinkID uint
	Err    error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("time series unavailable for link %d: %v", e.LinkID, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error {
	return e.Err
}

// LockTimeoutError means another recalculation held the link's lock beyond
// the allowed wait. Callers may retry with backoff.
type LockTimeoutError struct {
	LinkID uint
	Waited time.Duration
}

func (e *LockTimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for recalculation lock on link %d", e.Waited, e.LinkID)
}

// PersistenceError means the atomic write of recalculated associations
// failed. Nothing was persisted; the whole recalculation can be retried.
type PersistenceError struct {
	LinkID uint
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist recalculated associations for link %d: %v", e.LinkID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// PartialBatchError aggregates per-link failures of a batch operation. Links
// not listed were processed successfully.
type PartialBatchError struct {
	FailedLinkIDs []uint
}

func (e *PartialBatchError) Error() string {
	ids := make([]string, len(e.FailedLinkIDs))
	for i, id := range e.FailedLinkIDs {
		ids[i] = strconv.FormatUint(uint64(id), 10)
	}
	return fmt.Sprintf("%d link(s) failed: %s", len(e.FailedLinkIDs), strings.Join(ids, ", "))
}

// IsLockTimeout reports whether err is a lock timeout anywhere in its chain.
func IsLockTimeout(err error) bool {
	var lt *LockTimeoutError
	return errors.As(err, &lt)
}

// IsSourceUnavailable reports whether err stems from an unreachable or
// malformed time series.
func IsSourceUnavailable(err error) bool {
	var su *SourceUnavailableError
	return errors.As(err, &su)
}
