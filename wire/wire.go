// Package wire implements spec.md §4.4's self-describing binary reduction:
// turning References, Types, Instructions, Scopes and VM State into
// serializable `map[string]any` documents (reduce) and back (produce), so
// that a job can be shipped to a remote worker that shares no memory with
// the VM that created it.
//
// Grounded on the teacher's registry-of-factories idiom in
// registry/types.go (a name-keyed map of constructor functions) but
// reshaped around document production/consumption instead of constructing
// live PHP values.
package wire

import (
	"fmt"
	"sync"

	"github.com/svi-lang/svivm/types"
)

// Wire owns one object-type Arena and the bookkeeping needed to reduce and
// produce self-contained documents against it. A single Wire is meant to
// live as long as the VM instance whose Arena it wraps; transfer-scoped
// state (the in-progress set used to break cycles in recursive object
// types, and the remote-id→local-id map used while producing) is reset at
// the start of each top-level Reduce/Produce call via transfer.
type Wire struct {
	Arena *types.Arena

	mu sync.Mutex
}

func New(arena *types.Arena) *Wire {
	return &Wire{Arena: arena}
}

// transfer carries the per-call state needed to reduce or produce one
// document graph: the object-type ids currently being expanded (so a
// self-referential property emits a back-reference instead of recursing
// forever) and the map from a remote object-type id to the local id it was
// reconstructed as.
type transfer struct {
	w          *Wire
	inProgress map[types.ObjectTypeID]bool
	remote     map[uint64]types.ObjectTypeID
}

func (w *Wire) newTransfer() *transfer {
	return &transfer{w: w, inProgress: map[types.ObjectTypeID]bool{}, remote: map[uint64]types.ObjectTypeID{}}
}

func asDoc(v any) map[string]any {
	if v == nil {
		return nil
	}
	m, _ := v.(map[string]any)
	return m
}

func tagOf(doc map[string]any) string {
	if doc == nil {
		return ""
	}
	s, _ := doc["TAG"].(string)
	return s
}

func errUnknownTag(where, tag string) error {
	return fmt.Errorf("wire: %s: unrecognized TAG %q", where, tag)
}

// asUint64 and asInt tolerate a document having round-tripped through a
// codec that doesn't preserve Go's numeric types (encoding/json decodes
// every number as float64), so a document produced in-process and one
// that passed through a storage.SQLBackend's JSON column both produce
// correctly.
func asUint64(v any) (uint64, bool) {
	switch n := v.(type) {
	case uint64:
		return n, true
	case int:
		return uint64(n), true
	case int64:
		return uint64(n), true
	case float64:
		return uint64(n), true
	}
	return 0, false
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
