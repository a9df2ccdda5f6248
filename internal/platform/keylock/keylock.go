// Package keylock serializes mutations per item.
//
// reserve/release と FIFO 照合は read-then-write なので、同一 item への
// チェックアウト・返却・総数調整は直列化する必要がある。別 item は並列でよい。
package keylock

import "sync"

type KeyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func New() *KeyedMutex {
	return &KeyedMutex{locks: make(map[int64]*sync.Mutex)}
}

// Lock acquires the mutex for key and returns its unlock func.
// Item 数は高々数百件の想定なので、エントリは解放せず保持し続ける。
func (k *KeyedMutex) Lock(key int64) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
