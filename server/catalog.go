package server

import (
	"sync"

	"github.com/google/uuid"

	apperrors "github.com/jrsteele09/admin-session/internal/errors"
)

// record is one catalog entry as the admin screens send it. The catalog owns "id".
type record map[string]any

// catalog keeps the non-user admin collections in memory, in insertion order.
type catalog struct {
	lock        sync.RWMutex
	collections map[string]*collection
}

type collection struct {
	order   []string
	records map[string]record
}

func newCatalog(resources ...string) *catalog {
	c := &catalog{collections: make(map[string]*collection)}
	for _, name := range resources {
		c.collections[name] = &collection{records: make(map[string]record)}
	}
	return c
}

func (c *catalog) has(resource string) bool {
	_, ok := c.collections[resource]
	return ok
}

// list returns one page and the collection size.
func (c *catalog) list(resource string, offset, limit int) ([]record, int, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	col, ok := c.collections[resource]
	if !ok {
		return nil, 0, apperrors.ErrNotFound
	}

	out := make([]record, 0, limit)
	for i := offset; i < len(col.order) && len(out) < limit; i++ {
		out = append(out, copyRecord(col.records[col.order[i]]))
	}
	return out, len(col.order), nil
}

// listWhere returns every record whose field equals value.
func (c *catalog) listWhere(resource, field, value string) ([]record, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	col, ok := c.collections[resource]
	if !ok {
		return nil, apperrors.ErrNotFound
	}

	out := []record{}
	for _, id := range col.order {
		rec := col.records[id]
		if v, _ := rec[field].(string); v == value {
			out = append(out, copyRecord(rec))
		}
	}
	return out, nil
}

func (c *catalog) create(resource string, fields record) (record, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	col, ok := c.collections[resource]
	if !ok {
		return nil, apperrors.ErrNotFound
	}

	rec := copyRecord(fields)
	id := uuid.New().String()
	rec["id"] = id
	col.records[id] = rec
	col.order = append(col.order, id)
	return copyRecord(rec), nil
}

// update merges fields into the record; the id never changes.
func (c *catalog) update(resource, id string, fields record) (record, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	col, ok := c.collections[resource]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	rec, ok := col.records[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}

	for k, v := range fields {
		if k == "id" {
			continue
		}
		rec[k] = v
	}
	return copyRecord(rec), nil
}

func (c *catalog) delete(resource, id string) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	col, ok := c.collections[resource]
	if !ok {
		return apperrors.ErrNotFound
	}
	if _, ok := col.records[id]; !ok {
		return apperrors.ErrNotFound
	}

	delete(col.records, id)
	for i, existing := range col.order {
		if existing == id {
			col.order = append(col.order[:i], col.order[i+1:]...)
			break
		}
	}
	return nil
}

func copyRecord(r record) record {
	out := make(record, len(r)+1)
	for k, v := range r {
		out[k] = v
	}
	return out
}
