package document

import (
	"sync"
)

// Tracker is an in-memory document Source. Mutators emit lifecycle events to
// subscribers synchronously, outside the tracker's lock.
type Tracker struct {
	mu     sync.RWMutex
	docs   map[ID]Snapshot
	subs   map[uint64]func(Event)
	nextID uint64
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		docs: make(map[ID]Snapshot),
		subs: make(map[uint64]func(Event)),
	}
}

// Subscribe registers an event handler and returns an unsubscribe function.
func (t *Tracker) Subscribe(fn func(Event)) func() {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.subs[id] = fn
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.subs, id)
		t.mu.Unlock()
	}
}

// Lookup returns the current snapshot for an identity.
func (t *Tracker) Lookup(id ID) (Snapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	doc, ok := t.docs[id]
	return doc, ok
}

// All returns snapshots for every tracked document.
func (t *Tracker) All() []Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Snapshot, 0, len(t.docs))
	for _, doc := range t.docs {
		out = append(out, doc)
	}
	return out
}

// Count returns the number of tracked documents.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.docs)
}

// Open begins tracking a document and emits an Opened event. Opening an
// already tracked path refreshes its content without bumping the version.
func (t *Tracker) Open(path, language, text string) Snapshot {
	id := IDForPath(path)

	t.mu.Lock()
	doc, ok := t.docs[id]
	if !ok {
		doc = Snapshot{ID: id, Path: path, Language: language, Version: 1}
	}
	doc.Text = text
	t.docs[id] = doc
	t.mu.Unlock()

	t.emit(Event{Kind: Opened, Doc: doc})
	return doc
}

// Change updates a document's in-memory content and emits a Changed event.
// Unknown identities are ignored.
func (t *Tracker) Change(id ID, text string) {
	t.mu.Lock()
	doc, ok := t.docs[id]
	if !ok {
		t.mu.Unlock()
		return
	}
	doc.Text = text
	doc.Version++
	t.docs[id] = doc
	t.mu.Unlock()

	t.emit(Event{Kind: Changed, Doc: doc})
}

// Save emits a Saved event for a tracked document.
func (t *Tracker) Save(id ID) {
	t.mu.RLock()
	doc, ok := t.docs[id]
	t.mu.RUnlock()
	if !ok {
		return
	}

	t.emit(Event{Kind: Saved, Doc: doc})
}

// Close stops tracking a document and emits a Closed event carrying the last
// known snapshot.
func (t *Tracker) Close(id ID) {
	t.mu.Lock()
	doc, ok := t.docs[id]
	if ok {
		delete(t.docs, id)
	}
	t.mu.Unlock()
	if !ok {
		return
	}

	t.emit(Event{Kind: Closed, Doc: doc})
}

// emit delivers an event to all subscribers outside the lock.
func (t *Tracker) emit(ev Event) {
	t.mu.RLock()
	handlers := make([]func(Event), 0, len(t.subs))
	for _, fn := range t.subs {
		handlers = append(handlers, fn)
	}
	t.mu.RUnlock()

	for _, fn := range handlers {
		fn(ev)
	}
}

// Ensure Tracker implements Source.
var _ Source = (*Tracker)(nil)
