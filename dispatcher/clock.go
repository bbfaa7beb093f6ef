package dispatcher

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	cdsp "github.com/next-trace/scg-dispatch/contract/dispatch"
)

// systemClock backs correlation ids with a timestamp prefix and a random
// UUID suffix. The prefix keeps ids roughly sortable in logs; the suffix
// makes collisions negligible across the process lifetime.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) NewCorrelationID() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixNano(), uuid.NewString())
}

// SystemClock returns the default Clock backed by time.Now and random UUIDs.
func SystemClock() cdsp.Clock { return systemClock{} } //nolint:ireturn
