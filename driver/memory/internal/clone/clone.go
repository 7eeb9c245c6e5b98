package clone

import (
	"github.com/dogmatiq/dyad"
	"google.golang.org/protobuf/proto"
)

// Clone returns a deep copy of v.
//
// Protocol Buffers messages are copied with [proto.Clone], as their internal
// state must not be copied reflectively. Any other value is copied with
// [dyad.Clone].
func Clone[T any](v T) T {
	if m, ok := any(v).(proto.Message); ok {
		return proto.Clone(m).(T)
	}
	return dyad.Clone(v)
}

// Slice returns a new slice containing a deep copy of each element of s.
func Slice[S ~[]E, E any](s S) S {
	if s == nil {
		return nil
	}

	result := make(S, len(s))
	for i, v := range s {
		result[i] = Clone(v)
	}

	return result
}
