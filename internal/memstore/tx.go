// AngelaMos | 2026
// tx.go

package memstore

import (
	"context"
	"sync"
)

// Tx serialises WithinTx calls. It gives isolation between transactions but
// no rollback.
type Tx struct {
	mu sync.Mutex
}

func (t *Tx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(ctx)
}
