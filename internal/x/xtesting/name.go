package xtesting

import (
	"fmt"
	"sync"
	"sync/atomic"
)

var counters sync.Map

// SequentialName returns a test identifier with the given prefix that is unique
// within the test binary.
//
// Sequential identifiers make it easy to tell which subtest created a given
// ephemeral database when inspecting a server by hand.
func SequentialName(prefix string) string {
	v, ok := counters.Load(prefix)
	if !ok {
		var counter atomic.Uint64
		v, _ = counters.LoadOrStore(prefix, &counter)
	}

	counter := v.(*atomic.Uint64)
	return fmt.Sprintf("%s_%d", prefix, counter.Add(1))
}
