package ledger

import (
	"sync"

	"github.com/google/uuid"

	"github.com/rafaelcoron/uplevel-backend/pkg/enums"
)

// walletKey identifies the single wallet a settlement moves money in or out
// of.
type walletKey struct {
	UserID   uuid.UUID
	Currency enums.Currency
}

// keyedMutex hands out one mutex per wallet so applies against different
// wallets never contend while writes to the same wallet are strictly
// serialized. Entries are refcounted and dropped once the last holder
// releases, keeping the map bounded by the number of wallets in flight.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[walletKey]*mutexEntry
}

type mutexEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{entries: make(map[walletKey]*mutexEntry)}
}

// Lock blocks until the mutex for key is held.
func (k *keyedMutex) Lock(key walletKey) {
	k.mu.Lock()
	entry, ok := k.entries[key]
	if !ok {
		entry = &mutexEntry{}
		k.entries[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
}

// Unlock releases the mutex for key. Must pair with a prior Lock on the
// same key.
func (k *keyedMutex) Unlock(key walletKey) {
	k.mu.Lock()
	entry := k.entries[key]
	entry.refs--
	if entry.refs == 0 {
		delete(k.entries, key)
	}
	k.mu.Unlock()

	entry.mu.Unlock()
}
