package queue

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/svi-lang/svivm/scope"
	"github.com/svi-lang/svivm/storage"
	"github.com/svi-lang/svivm/types"
	"github.com/svi-lang/svivm/values"
	"github.com/svi-lang/svivm/wire"
)

// SQLStore is the cross-process Store of spec.md §4.5, a job table shared
// across worker nodes via the same SQL driver abstraction storage opens
// for SHARED locations, so a cluster of workers can claim from one table
// instead of each running an isolated in-process queue.
type SQLStore struct {
	db      *sql.DB
	dialect storage.Dialect
	wire    *wire.Wire
}

func NewSQLStore(store *storage.SQLBackend) (*SQLStore, error) {
	s := &SQLStore{db: store.DB(), dialect: store.SQLDialect(), wire: store.Wire()}
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS svi_jobs (
		job_seq BIGINT NOT NULL,
		job_uuid VARCHAR(36) PRIMARY KEY,
		context_id BIGINT NOT NULL,
		call_doc TEXT NOT NULL,
		scope_doc TEXT NOT NULL,
		state_doc TEXT NOT NULL,
		filters_doc TEXT NOT NULL,
		status VARCHAR(16) NOT NULL,
		return_doc TEXT,
		error_message TEXT
	)`); err != nil {
		return nil, fmt.Errorf("queue: schema init: %w", err)
	}
	return s, nil
}

func (s *SQLStore) Enqueue(j *Job) error {
	callDoc, err := json.Marshal(s.wire.ReduceValue(&values.Value{
		Tag: values.TagFunction, Decl: types.Lambda0(types.Ambiguous()), Fn: j.Call,
	}))
	if err != nil {
		return err
	}
	scopeDoc, err := json.Marshal(s.wire.ReduceChain(j.Scope))
	if err != nil {
		return err
	}
	stateDoc, err := json.Marshal(s.wire.ReduceState(j.State))
	if err != nil {
		return err
	}
	filtersDoc, err := json.Marshal(j.Filters)
	if err != nil {
		return err
	}

	ph := s.dialect.Placeholder
	_, err = s.db.Exec(fmt.Sprintf(`INSERT INTO svi_jobs
		(job_seq, job_uuid, context_id, call_doc, scope_doc, state_doc, filters_doc, status)
		VALUES (%s, %s, %s, %s, %s, %s, %s, %s)`,
		ph(1), ph(2), ph(3), ph(4), ph(5), ph(6), ph(7), ph(8)),
		j.ID.Seq, j.ID.UUID.String(), j.Context, string(callDoc), string(scopeDoc), string(stateDoc), string(filtersDoc), j.Status.String())
	return err
}

// Claim atomically takes the oldest pending job, scanning candidate rows
// and filtering in Go since scheduling filters are an arbitrary key-value
// map rather than a column a WHERE clause can match directly.
func (s *SQLStore) Claim(workerFilters map[string]string) (*Job, bool, error) {
	rows, err := s.db.Query(fmt.Sprintf(`SELECT job_seq, job_uuid, context_id, call_doc, scope_doc, state_doc, filters_doc
		FROM svi_jobs WHERE status = %s ORDER BY job_seq ASC`, s.dialect.Placeholder(1)), Pending.String())
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	type candidate struct {
		seq                                      uint64
		uid                                      string
		ctx                                      uint64
		callDoc, scopeDoc, stateDoc, filtersDoc  string
	}
	var chosen *candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.seq, &c.uid, &c.ctx, &c.callDoc, &c.scopeDoc, &c.stateDoc, &c.filtersDoc); err != nil {
			return nil, false, err
		}
		var filters map[string]string
		if err := json.Unmarshal([]byte(c.filtersDoc), &filters); err != nil {
			return nil, false, err
		}
		matches := true
		for k, v := range filters {
			if workerFilters[k] != v {
				matches = false
				break
			}
		}
		if matches {
			chosen = &c
			break
		}
	}
	if chosen == nil {
		return nil, false, nil
	}

	res, err := s.db.Exec(fmt.Sprintf(`UPDATE svi_jobs SET status = %s WHERE job_uuid = %s AND status = %s`,
		s.dialect.Placeholder(1), s.dialect.Placeholder(2), s.dialect.Placeholder(3)),
		Running.String(), chosen.uid, Pending.String())
	if err != nil {
		return nil, false, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// another worker claimed it between the scan and the update
		return nil, false, nil
	}

	uid, err := uuid.Parse(chosen.uid)
	if err != nil {
		return nil, false, err
	}
	j, err := s.decode(chosen.seq, uid, chosen.ctx, chosen.callDoc, chosen.scopeDoc, chosen.stateDoc, chosen.filtersDoc)
	if err != nil {
		return nil, false, err
	}
	j.Status = Running
	return j, true, nil
}

func (s *SQLStore) decode(seq uint64, uid uuid.UUID, ctxID uint64, callDoc, scopeDoc, stateDoc, filtersDoc string) (*Job, error) {
	var callM map[string]any
	if err := json.Unmarshal([]byte(callDoc), &callM); err != nil {
		return nil, err
	}
	callVal := s.wire.ProduceValue(callM)

	var scopeDocs []map[string]any
	if err := json.Unmarshal([]byte(scopeDoc), &scopeDocs); err != nil {
		return nil, err
	}
	chain := scope.NewChain()
	leaf := s.wire.ProduceChain(chain, scopeDocs)

	var stateM map[string]any
	if err := json.Unmarshal([]byte(stateDoc), &stateM); err != nil {
		return nil, err
	}
	st := s.wire.ProduceState(stateM)

	var filters map[string]string
	if err := json.Unmarshal([]byte(filtersDoc), &filters); err != nil {
		return nil, err
	}

	return &Job{
		ID:      JobID{Seq: seq, UUID: uid},
		Context: ctxID,
		Call:    callVal.Fn,
		Scope:   leaf,
		State:   st,
		Filters: filters,
		Status:  Pending,
	}, nil
}

func (s *SQLStore) Update(j *Job) error {
	var returnDoc sql.NullString
	if j.Return != nil {
		doc, err := json.Marshal(s.wire.ReduceValue(j.Return))
		if err != nil {
			return err
		}
		returnDoc = sql.NullString{String: string(doc), Valid: true}
	}
	var errMsg sql.NullString
	if j.Error != nil {
		errMsg = sql.NullString{String: j.Error.Error(), Valid: true}
	}

	ph := s.dialect.Placeholder
	_, err := s.db.Exec(fmt.Sprintf(`UPDATE svi_jobs SET status = %s, return_doc = %s, error_message = %s WHERE job_uuid = %s`,
		ph(1), ph(2), ph(3), ph(4)), j.Status.String(), returnDoc, errMsg, j.ID.UUID.String())
	return err
}

