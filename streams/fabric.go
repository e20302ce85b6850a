package streams

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/svi-lang/svivm/storage"
	"github.com/svi-lang/svivm/values"
)

// Fabric is the resource directory of spec.md §4.6: a Resource value's
// Invoke closure can never cross the wire, so a Resource only ever lives
// on the node that created it. Fabric tracks, per resource id, which node
// owns it (in a shared SQL table so every node can look it up) and holds
// the live *values.Resource for the ids this node itself owns.
//
// Grounded on runtime/concurrency.go's GoroutineManager: a mutex-guarded
// map keyed by an id, here repurposed from tracking in-flight goroutines
// to tracking locally-owned resource handles.
type Fabric struct {
	mu    sync.RWMutex
	owned map[uint64]*values.Resource

	db      *sql.DB
	dialect storage.Dialect
	node    string
}

// NewFabric builds a resource directory for node, sharing store's
// connection pool for the cross-node ownership table.
func NewFabric(store *storage.SQLBackend, node string) (*Fabric, error) {
	f := &Fabric{
		owned:   make(map[uint64]*values.Resource),
		db:      store.DB(),
		dialect: store.SQLDialect(),
		node:    node,
	}
	if _, err := f.db.Exec(`CREATE TABLE IF NOT EXISTS svi_fabric (
		resource_id BIGINT PRIMARY KEY,
		owner_node VARCHAR(256) NOT NULL,
		kind VARCHAR(256) NOT NULL,
		replicable BOOLEAN NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("streams: fabric schema init: %w", err)
	}
	return f, nil
}

// Publish records id as owned by this node and keeps its live handle in
// the local registry so Invoke calls routed here can be served.
func (f *Fabric) Publish(id uint64, r *values.Resource) error {
	r.OwnerNode = f.node

	f.mu.Lock()
	f.owned[id] = r
	f.mu.Unlock()

	ph1, ph2, ph3, ph4 := f.dialect.Placeholder(1), f.dialect.Placeholder(2), f.dialect.Placeholder(3), f.dialect.Placeholder(4)
	_, err := f.db.Exec(fmt.Sprintf(`INSERT INTO svi_fabric (resource_id, owner_node, kind, replicable) VALUES (%s, %s, %s, %s)`,
		ph1, ph2, ph3, ph4), id, f.node, r.Kind, r.Replicable)
	return err
}

// Owner reports which node owns resource id, per the directory table.
func (f *Fabric) Owner(id uint64) (node string, found bool, err error) {
	row := f.db.QueryRow(fmt.Sprintf(`SELECT owner_node FROM svi_fabric WHERE resource_id = %s`, f.dialect.Placeholder(1)), id)
	if err := row.Scan(&node); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, err
	}
	return node, true, nil
}

// Local returns the live handle for id if this node owns it.
func (f *Fabric) Local(id uint64) (*values.Resource, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	r, ok := f.owned[id]
	return r, ok
}

// Revoke drops id from both the local registry and the shared directory,
// e.g. when the owning scope that created the resource exits.
func (f *Fabric) Revoke(id uint64) error {
	f.mu.Lock()
	delete(f.owned, id)
	f.mu.Unlock()

	_, err := f.db.Exec(fmt.Sprintf(`DELETE FROM svi_fabric WHERE resource_id = %s AND owner_node = %s`,
		f.dialect.Placeholder(1), f.dialect.Placeholder(2)), id, f.node)
	return err
}
