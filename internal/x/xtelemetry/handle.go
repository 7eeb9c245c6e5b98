package xtelemetry

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

var invocations atomic.Uint64

// InvocationID returns an identifier for a single harness invocation of the
// test identified by testID.
//
// The sequence number orders invocations within the process; the UUID keeps the
// identifier unique across processes that export to the same backend.
func InvocationID(testID string) string {
	return fmt.Sprintf(
		"%s#%d/%s",
		testID,
		invocations.Add(1),
		uuid.NewString(),
	)
}
