package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb/comparer"
	"github.com/syndtr/goleveldb/leveldb/memdb"
)

const (
	markDeleted byte = 0
	markValue   byte = 1
)

// Overlay is a staged layer of writes over a parent Reader. Reads fall
// through to the parent for keys the layer has not touched. A nested
// overlay over another overlay is committed into it with Commit; the
// outermost layer's Writes become a block.
//
// Entries carry a one-byte marker so deletions shadow the parent.
type Overlay struct {
	parent Reader
	db     *memdb.DB
}

// NewOverlay stages writes over parent.
func NewOverlay(parent Reader) *Overlay {
	return &Overlay{parent: parent, db: memdb.New(comparer.DefaultComparer, 0)}
}

// Nest opens a child layer over o.
func (o *Overlay) Nest() *Overlay {
	return NewOverlay(o)
}

// Parent returns the layer below o.
func (o *Overlay) Parent() Reader { return o.parent }

// Get reads key through the layer chain.
func (o *Overlay) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := o.db.Get([]byte(key))
	switch {
	case err == nil:
		if raw[0] == markDeleted {
			return nil, false, nil
		}
		return cloneBytes(raw[1:]), true, nil
	case errors.Is(err, memdb.ErrNotFound):
		if o.parent == nil {
			return nil, false, nil
		}
		return o.parent.Get(ctx, key)
	default:
		return nil, false, fmt.Errorf("overlay get %q: %w", key, err)
	}
}

// Put stages a value for key.
func (o *Overlay) Put(key string, val []byte) error {
	rec := make([]byte, 0, len(val)+1)
	rec = append(rec, markValue)
	rec = append(rec, val...)
	if err := o.db.Put([]byte(key), rec); err != nil {
		return fmt.Errorf("overlay put %q: %w", key, err)
	}
	return nil
}

// Delete stages a deletion of key.
func (o *Overlay) Delete(key string) error {
	if err := o.db.Put([]byte(key), []byte{markDeleted}); err != nil {
		return fmt.Errorf("overlay delete %q: %w", key, err)
	}
	return nil
}

// Len returns the number of staged keys.
func (o *Overlay) Len() int { return o.db.Len() }

// Writes returns the staged changes sorted by key.
func (o *Overlay) Writes() []Write {
	it := o.db.NewIterator(nil)
	defer it.Release()

	out := make([]Write, 0, o.db.Len())
	for it.Next() {
		rec := it.Value()
		w := Write{Key: string(it.Key())}
		if rec[0] == markDeleted {
			w.Deleted = true
		} else {
			w.Value = cloneBytes(rec[1:])
		}
		out = append(out, w)
	}
	return out
}

// Commit merges the staged changes into the parent layer and clears o.
// The parent must itself be an overlay; the bottom layer is flushed with
// Store.CommitBlock instead.
func (o *Overlay) Commit() error {
	parent, ok := o.parent.(*Overlay)
	if !ok {
		return errors.New("overlay commit: parent is not an overlay")
	}
	for _, w := range o.Writes() {
		var err error
		if w.Deleted {
			err = parent.Delete(w.Key)
		} else {
			err = parent.Put(w.Key, w.Value)
		}
		if err != nil {
			return fmt.Errorf("overlay commit: %w", err)
		}
	}
	o.db.Reset()
	return nil
}

// Discard drops every staged change.
func (o *Overlay) Discard() {
	o.db.Reset()
}
