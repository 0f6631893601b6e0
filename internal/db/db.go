// Package db defines the Db collaborator contract the coordinator
// reconciles state through, plus an in-memory driver. The contract
// mirrors the three write shapes the original relies on throughout
// every workflow: replace (full document overwrite), set_one (atomic
// partial field update by dotted path), and del_one (delete by
// filter).
package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// NotFoundError is returned when a lookup matches no document.
type NotFoundError struct {
	Collection string
	Filter     map[string]interface{}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("db: no document in %q matching %v", e.Collection, e.Filter)
}

// IsNotFound reports whether err is (or wraps) a *NotFoundError.
func IsNotFound(err error) bool {
	var nfErr *NotFoundError
	return errors.As(err, &nfErr)
}

// Db is the document-store collaborator contract.
type Db interface {
	GetOne(ctx context.Context, collection string, filter map[string]interface{}) (map[string]interface{}, error)
	GetList(ctx context.Context, collection string, filter map[string]interface{}) ([]map[string]interface{}, error)
	// Replace overwrites the full document identified by id.
	Replace(ctx context.Context, collection, id string, doc map[string]interface{}) error
	// SetOne atomically updates the dotted-path fields named in update
	// on the document matched by filter, leaving the rest untouched.
	SetOne(ctx context.Context, collection string, filter map[string]interface{}, update map[string]interface{}) error
	// DelOne deletes the document matched by filter. Returns
	// *NotFoundError if nothing matched.
	DelOne(ctx context.Context, collection string, filter map[string]interface{}) error
	Disconnect() error
}

// MemoryDb is an in-process Db backed by a map of collections to
// documents, keyed by "_id". It's the default driver (config:
// database.driver=memory) and the one the workflow test suite runs
// against.
type MemoryDb struct {
	mu          sync.Mutex
	collections map[string]map[string]map[string]interface{}
}

// NewMemoryDb builds an empty MemoryDb.
func NewMemoryDb() *MemoryDb {
	return &MemoryDb{collections: make(map[string]map[string]map[string]interface{})}
}

func (d *MemoryDb) collection(name string) map[string]map[string]interface{} {
	c, ok := d.collections[name]
	if !ok {
		c = make(map[string]map[string]interface{})
		d.collections[name] = c
	}
	return c
}

func matches(doc map[string]interface{}, filter map[string]interface{}) bool {
	for k, v := range filter {
		if doc[k] != v {
			return false
		}
	}
	return true
}

func (d *MemoryDb) GetOne(ctx context.Context, collection string, filter map[string]interface{}) (map[string]interface{}, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, doc := range d.collection(collection) {
		if matches(doc, filter) {
			return deepCopy(doc), nil
		}
	}
	return nil, &NotFoundError{Collection: collection, Filter: filter}
}

func (d *MemoryDb) GetList(ctx context.Context, collection string, filter map[string]interface{}) ([]map[string]interface{}, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []map[string]interface{}
	for _, doc := range d.collection(collection) {
		if matches(doc, filter) {
			out = append(out, deepCopy(doc))
		}
	}
	return out, nil
}

func (d *MemoryDb) Replace(ctx context.Context, collection, id string, doc map[string]interface{}) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := deepCopy(doc)
	cp["_id"] = id
	d.collection(collection)[id] = cp
	return nil
}

// SetOne applies dotted-path updates (e.g. "_admin.deployed.nsr_ip")
// to the first document matching filter.
func (d *MemoryDb) SetOne(ctx context.Context, collection string, filter map[string]interface{}, update map[string]interface{}) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	col := d.collection(collection)
	for id, doc := range col {
		if !matches(doc, filter) {
			continue
		}
		for path, value := range update {
			setDotted(doc, path, value)
		}
		col[id] = doc
		return nil
	}
	return &NotFoundError{Collection: collection, Filter: filter}
}

func (d *MemoryDb) DelOne(ctx context.Context, collection string, filter map[string]interface{}) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	col := d.collection(collection)
	for id, doc := range col {
		if matches(doc, filter) {
			delete(col, id)
			return nil
		}
	}
	return &NotFoundError{Collection: collection, Filter: filter}
}

func (d *MemoryDb) Disconnect() error { return nil }

func setDotted(doc map[string]interface{}, path string, value interface{}) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}

func deepCopy(doc map[string]interface{}) map[string]interface{} {
	b, err := json.Marshal(doc)
	if err != nil {
		// documents are always built from this process's own types,
		// so marshaling failure would indicate a programming error.
		panic(fmt.Sprintf("db: deep copy failed: %v", err))
	}
	var out map[string]interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		panic(fmt.Sprintf("db: deep copy failed: %v", err))
	}
	return out
}
