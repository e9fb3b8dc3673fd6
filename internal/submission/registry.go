package submission

import (
	"sync"

	"github.com/google/uuid"
)

// Registry holds the live submissions, at most one per owner. A submission
// leaves the registry when it is discarded or replaced.
type Registry struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*Submission
	byOwner map[string]uuid.UUID
}

func NewRegistry() *Registry {
	return &Registry{
		byID:    make(map[uuid.UUID]*Submission),
		byOwner: make(map[string]uuid.UUID),
	}
}

// Open returns the owner's unsettled submission if there is one, otherwise
// registers the one built by create. A settled predecessor is discarded.
// created reports which case happened.
func (r *Registry) Open(owner string, create func() *Submission) (sub *Submission, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byOwner[owner]; ok {
		prev := r.byID[id]
		if prev != nil && !prev.Snapshot().Status.Settled() {
			return prev, false
		}
		if prev != nil {
			prev.Discard()
		}
		delete(r.byID, id)
	}

	sub = create()
	r.byID[sub.ID()] = sub
	r.byOwner[owner] = sub.ID()
	return sub, true
}

// Get returns the submission only if owner owns it.
func (r *Registry) Get(owner string, id uuid.UUID) (*Submission, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.byID[id]
	if !ok || sub.Owner() != owner {
		return nil, false
	}
	return sub, true
}

// Discard tears the submission down and forgets it.
func (r *Registry) Discard(owner string, id uuid.UUID) bool {
	r.mu.Lock()
	sub, ok := r.byID[id]
	if !ok || sub.Owner() != owner {
		r.mu.Unlock()
		return false
	}
	delete(r.byID, id)
	if r.byOwner[owner] == id {
		delete(r.byOwner, owner)
	}
	r.mu.Unlock()

	sub.Discard()
	return true
}

// DiscardAll is used at shutdown.
func (r *Registry) DiscardAll() {
	r.mu.Lock()
	subs := make([]*Submission, 0, len(r.byID))
	for _, s := range r.byID {
		subs = append(subs, s)
	}
	r.byID = make(map[uuid.UUID]*Submission)
	r.byOwner = make(map[string]uuid.UUID)
	r.mu.Unlock()

	for _, s := range subs {
		s.Discard()
		s.Wait()
	}
}
