package router

import (
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/brandcraft/brandcraft/internal/task"
)

// cacheKey fingerprints a (task, payload) pair. xxhash is fast and
// collision-resistant enough for best-effort memoization; this is not a
// security boundary.
func cacheKey(t task.Task, payload string) string {
	return fmt.Sprintf("%s:%016x", t, xxhash.Sum64String(payload))
}
