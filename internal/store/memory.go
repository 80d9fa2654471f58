package store

import (
	"context"
	"sort"
	"sync"
)

// Memory is the in-memory reference implementation, used by tests and as the
// behavioral model for the SQLite store.
type Memory struct {
	mu      sync.RWMutex
	docs    map[string]map[string][]byte // namespace/collection -> id -> data
	subs    map[string]map[int]func([]byte)
	nextSub int
}

func NewMemory() *Memory {
	return &Memory{
		docs: make(map[string]map[string][]byte),
		subs: make(map[string]map[int]func([]byte)),
	}
}

func collKey(namespace, collection string) string {
	return namespace + "/" + collection
}

func docKey(namespace, collection, id string) string {
	return namespace + "/" + collection + "/" + id
}

func (m *Memory) Get(ctx context.Context, namespace, collection, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	coll, ok := m.docs[collKey(namespace, collection)]
	if !ok {
		return nil, ErrNotFound
	}
	data, ok := coll[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *Memory) Set(ctx context.Context, namespace, collection, id string, data []byte) error {
	m.mu.Lock()
	key := collKey(namespace, collection)
	coll, ok := m.docs[key]
	if !ok {
		coll = make(map[string][]byte)
		m.docs[key] = coll
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	coll[id] = stored
	fns := m.subscribers(namespace, collection, id)
	m.mu.Unlock()

	for _, fn := range fns {
		fn(stored)
	}
	return nil
}

func (m *Memory) Delete(ctx context.Context, namespace, collection, id string) error {
	m.mu.Lock()
	coll, ok := m.docs[collKey(namespace, collection)]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	if _, ok := coll[id]; !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	delete(coll, id)
	fns := m.subscribers(namespace, collection, id)
	m.mu.Unlock()

	for _, fn := range fns {
		fn(nil)
	}
	return nil
}

func (m *Memory) List(ctx context.Context, namespace, collection string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	coll := m.docs[collKey(namespace, collection)]
	records := make([]Record, 0, len(coll))
	for id, data := range coll {
		out := make([]byte, len(data))
		copy(out, data)
		records = append(records, Record{ID: id, Data: out})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

func (m *Memory) Subscribe(namespace, collection, id string, fn func(data []byte)) func() {
	m.mu.Lock()
	key := docKey(namespace, collection, id)
	if m.subs[key] == nil {
		m.subs[key] = make(map[int]func([]byte))
	}
	token := m.nextSub
	m.nextSub++
	m.subs[key][token] = fn

	var snapshot []byte
	if coll, ok := m.docs[collKey(namespace, collection)]; ok {
		if data, ok := coll[id]; ok {
			snapshot = make([]byte, len(data))
			copy(snapshot, data)
		}
	}
	m.mu.Unlock()

	fn(snapshot)

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs[key], token)
	}
}

// subscribers must be called with mu held.
func (m *Memory) subscribers(namespace, collection, id string) []func([]byte) {
	key := docKey(namespace, collection, id)
	fns := make([]func([]byte), 0, len(m.subs[key]))
	for _, fn := range m.subs[key] {
		fns = append(fns, fn)
	}
	return fns
}
