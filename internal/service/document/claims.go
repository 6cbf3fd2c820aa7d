package document

import (
	"sync"
	"time"
)

// claimArena enforces at-most-one in-flight compression attempt per document.
// A claim is keyed by document ID and carries an expiry so that a crashed or
// hung worker cannot wedge a document forever: once the expiry passes the
// claim is reclaimable by the next attempt.
//
// Claims are process-local tokens, not language-level locks, so the same
// scheme ports to a shared store in a multi-process deployment.
type claimArena struct {
	mu     sync.Mutex
	claims map[string]time.Time
}

func newClaimArena() *claimArena {
	return &claimArena{claims: make(map[string]time.Time)}
}

// acquire takes the claim for docID. It fails if a live claim is held.
func (a *claimArena) acquire(docID string, ttl time.Duration) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	if expiry, held := a.claims[docID]; held && now.Before(expiry) {
		return false
	}
	a.claims[docID] = now.Add(ttl)
	return true
}

// release frees the claim for docID. Safe to call for unheld claims.
func (a *claimArena) release(docID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.claims, docID)
}

// held reports whether a live claim exists for docID.
func (a *claimArena) held(docID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	expiry, ok := a.claims[docID]
	return ok && time.Now().Before(expiry)
}
