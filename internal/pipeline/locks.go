package pipeline

import (
	"fmt"
	"sync"

	"github.com/quantfeed/marketpulse/internal/contracts"
)

// targetLocks serializes predictor mutation and evaluation per
// (scope, target). Targets are fully independent: the unit of locking is
// one target, never the whole pipeline.
type targetLocks struct {
	locks sync.Map // key string -> *sync.Mutex
}

func newTargetLocks() *targetLocks {
	return &targetLocks{}
}

func (t *targetLocks) lock(scope contracts.Scope, target string) func() {
	key := fmt.Sprintf("%s|%s", scope, target)
	v, _ := t.locks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
