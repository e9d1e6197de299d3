// Package syncutil содержит примитивы синхронизации для сериализации
// операций над одним заказом внутри процесса.
package syncutil

import (
	"context"
	"sync"
	"time"
)

// KeyedMutex даёт отдельную блокировку на каждый ключ. Разные ключи друг
// друга не ждут. Запись ключа живёт, пока её кто-то держит или ждёт.
// Ожидание блокировки прерывается отменой контекста.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*keyEntry
	timeout time.Duration
}

type keyEntry struct {
	ch   chan struct{}
	refs int
}

// NewKeyedMutex создаёт мьютекс. timeout > 0 ограничивает ожидание в Lock.
func NewKeyedMutex(timeout time.Duration) *KeyedMutex {
	return &KeyedMutex{
		entries: make(map[string]*keyEntry),
		timeout: timeout,
	}
}

// Lock захватывает блокировку ключа и возвращает функцию освобождения.
func (m *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	e := m.acquire(key)
	select {
	case e.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-e.ch
				m.release(key, e)
			})
		}, nil
	case <-ctx.Done():
		m.release(key, e)
		return nil, ctx.Err()
	}
}

// acquire регистрирует интерес к ключу.
func (m *KeyedMutex) acquire(key string) *keyEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		e = &keyEntry{ch: make(chan struct{}, 1)}
		m.entries[key] = e
	}
	e.refs++
	return e
}

func (m *KeyedMutex) release(key string, e *keyEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(m.entries, key)
	}
}

// Len возвращает число ключей, которые сейчас заняты или ожидаются.
func (m *KeyedMutex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
