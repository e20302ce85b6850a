package streams

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/svi-lang/svivm/storage"
	"github.com/svi-lang/svivm/types"
	"github.com/svi-lang/svivm/values"
	"github.com/svi-lang/svivm/wire"
)

// SQL is the distributed stream backend of spec.md §4.6: a table keyed by
// (stream_id, seq), with seq handed out from a per-stream next_seq counter
// in svi_stream_state, emulates LPUSH/RPOP over the same SQL
// backend package storage already opened for SHARED locations, so a
// stream created on one worker node is poppable from another. Grounded
// on storage.SQLBackend's table-per-concern approach.
type SQL struct {
	db      *sql.DB
	dialect storage.Dialect
	wire    *wire.Wire
	id      uint64
	elem    *types.Type
}

// NewSQL opens (creating if needed) the backing table for stream id,
// sharing store's connection pool, dialect and Wire instance.
func NewSQL(store *storage.SQLBackend, id uint64, elem *types.Type) (*SQL, error) {
	s := &SQL{db: store.DB(), dialect: store.SQLDialect(), wire: store.Wire(), id: id, elem: elem}
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS svi_streams (
		stream_id BIGINT NOT NULL,
		seq INTEGER NOT NULL,
		value_doc TEXT NOT NULL,
		PRIMARY KEY (stream_id, seq)
	)`); err != nil {
		return nil, fmt.Errorf("streams: schema init: %w", err)
	}
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS svi_stream_state (
		stream_id BIGINT PRIMARY KEY,
		next_seq INTEGER NOT NULL,
		open BOOLEAN NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("streams: schema init: %w", err)
	}
	ph1 := s.dialect.Placeholder(1)
	row := s.db.QueryRow(fmt.Sprintf(`SELECT 1 FROM svi_stream_state WHERE stream_id = %s`, ph1), id)
	var x int
	if err := row.Scan(&x); err == sql.ErrNoRows {
		ph2 := s.dialect.Placeholder(2)
		ph3 := s.dialect.Placeholder(3)
		if _, err := s.db.Exec(fmt.Sprintf(`INSERT INTO svi_stream_state (stream_id, next_seq, open) VALUES (%s, %s, %s)`, ph1, ph2, ph3), id, 0, true); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQL) ID() uint64             { return s.id }
func (s *SQL) InnerType() *types.Type { return s.elem }

func (s *SQL) IsOpen() bool {
	row := s.db.QueryRow(fmt.Sprintf(`SELECT open FROM svi_stream_state WHERE stream_id = %s`, s.dialect.Placeholder(1)), s.id)
	var open bool
	if err := row.Scan(&open); err != nil {
		return false
	}
	return open
}

func (s *SQL) Close() error {
	_, err := s.db.Exec(fmt.Sprintf(`UPDATE svi_stream_state SET open = %s WHERE stream_id = %s`,
		s.dialect.Placeholder(1), s.dialect.Placeholder(2)), false, s.id)
	return err
}

func (s *SQL) Push(v *values.Value) error {
	doc, err := json.Marshal(s.wire.ReduceValue(v))
	if err != nil {
		return err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	row := tx.QueryRow(fmt.Sprintf(`SELECT next_seq FROM svi_stream_state WHERE stream_id = %s`, s.dialect.Placeholder(1)), s.id)
	var seq int
	if err := row.Scan(&seq); err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf(`INSERT INTO svi_streams (stream_id, seq, value_doc) VALUES (%s, %s, %s)`,
		s.dialect.Placeholder(1), s.dialect.Placeholder(2), s.dialect.Placeholder(3)), s.id, seq, string(doc)); err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf(`UPDATE svi_stream_state SET next_seq = %s WHERE stream_id = %s`,
		s.dialect.Placeholder(1), s.dialect.Placeholder(2)), seq+1, s.id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQL) Pop() (*values.Value, bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	row := tx.QueryRow(fmt.Sprintf(`SELECT seq, value_doc FROM svi_streams WHERE stream_id = %s ORDER BY seq ASC LIMIT 1`,
		s.dialect.Placeholder(1)), s.id)
	var seq int
	var doc string
	if err := row.Scan(&seq, &doc); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	if _, err := tx.Exec(fmt.Sprintf(`DELETE FROM svi_streams WHERE stream_id = %s AND seq = %s`,
		s.dialect.Placeholder(1), s.dialect.Placeholder(2)), s.id, seq); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}

	var vm map[string]any
	if err := json.Unmarshal([]byte(doc), &vm); err != nil {
		return nil, false, err
	}
	return s.wire.ProduceValue(vm), true, nil
}

func (s *SQL) IsEmpty() (bool, error) {
	row := s.db.QueryRow(fmt.Sprintf(`SELECT 1 FROM svi_streams WHERE stream_id = %s LIMIT 1`, s.dialect.Placeholder(1)), s.id)
	var x int
	err := row.Scan(&x)
	if err == sql.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}
