package multipart

import "sync"

// record is the registry's entry for one upload: the Info plus the token
// (mutex) that serializes its terminal transitions, matching the
// re-check-after-lock pattern used for lock acquisition across the
// codebase's in-memory locker.
type record struct {
	mu   sync.Mutex
	info *Info
}

// registry is a concurrent uploadId -> *record map supporting lock-free
// lookup and atomic removal. It does not itself serialize mutations to a
// record's Info; callers that need exclusivity take record.mu.
type registry struct {
	uploads sync.Map // uploadID string -> *record
}

func newRegistry() *registry {
	return &registry{}
}

// register inserts a new record for uploadID. It returns false without
// modifying the registry if uploadID is already present.
func (r *registry) register(uploadID string, info *Info) (*record, bool) {
	rec := &record{info: info}
	actual, loaded := r.uploads.LoadOrStore(uploadID, rec)
	if loaded {
		return actual.(*record), false
	}
	return rec, true
}

// lookup returns the record for uploadID, if registered.
func (r *registry) lookup(uploadID string) (*record, bool) {
	v, ok := r.uploads.Load(uploadID)
	if !ok {
		return nil, false
	}
	return v.(*record), true
}

// unregister atomically removes uploadID from the registry.
func (r *registry) unregister(uploadID string) {
	r.uploads.Delete(uploadID)
}

// snapshot returns every currently registered record. The returned slice is
// a point-in-time copy; records may be removed concurrently after this
// returns.
func (r *registry) snapshot() []*record {
	var out []*record
	r.uploads.Range(func(_, v any) bool {
		out = append(out, v.(*record))
		return true
	})
	return out
}
