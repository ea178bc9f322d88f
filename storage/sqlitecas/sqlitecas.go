package sqlitecas

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bobg/sqlutil"
	"github.com/ipfs/go-cid"
	_ "github.com/mattn/go-sqlite3"

	"xledger.io/charter/cidutil"
	"xledger.io/charter/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS blocks (
  cid TEXT NOT NULL PRIMARY KEY,
  bytes BLOB NOT NULL
);
`

// CAS is a SQLite-backed content-addressable store.
//
// Objects live in a single database file, keyed strictly by CID. Like the
// filesystem store it is offline and deterministic.
type CAS struct {
	db *sql.DB
}

// Open opens (creating if needed) a SQLite CAS at the given DSN.
//
// The DSN is passed through to the sqlite3 driver, so it is usually a file
// path, optionally with driver parameters (e.g. "cas.db?_busy_timeout=5000").
func Open(dsn string) (*CAS, error) {
	if dsn == "" {
		return nil, errors.New("sqlitecas: dsn is required")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlitecas: creating schema: %w", err)
	}
	return &CAS{db: db}, nil
}

func (c *CAS) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *CAS) Put(bytes []byte) (cid.Cid, error) {
	id, err := cidutil.CIDv1RawSHA256CID(bytes)
	if err != nil {
		return cid.Undef, err
	}
	if !id.Defined() {
		return cid.Undef, storage.ErrInvalidCID
	}

	res, err := c.db.Exec(`INSERT OR IGNORE INTO blocks (cid, bytes) VALUES ($1, $2)`, id.String(), bytes)
	if err != nil {
		return cid.Undef, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return cid.Undef, err
	}
	if n == 0 {
		// The row already existed; re-Put is a no-op only if the stored
		// bytes are intact.
		existing, err := c.Get(id)
		if err != nil {
			return cid.Undef, storage.ErrImmutable
		}
		if string(existing) != string(bytes) {
			return cid.Undef, storage.ErrImmutable
		}
	}
	return id, nil
}

func (c *CAS) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	var b []byte
	err := c.db.QueryRow(`SELECT bytes FROM blocks WHERE cid = $1`, id.String()).Scan(&b)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	got, err := cidutil.CIDv1RawSHA256CID(b)
	if err != nil {
		return nil, err
	}
	if got != id {
		return nil, storage.ErrCIDMismatch
	}
	return b, nil
}

func (c *CAS) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	var one int
	err := c.db.QueryRow(`SELECT 1 FROM blocks WHERE cid = $1`, id.String()).Scan(&one)
	return err == nil
}

// IDs returns the CIDs of all stored objects, sorted.
func (c *CAS) IDs(ctx context.Context) ([]cid.Cid, error) {
	var out []cid.Cid
	err := sqlutil.ForQueryRows(ctx, c.db, `SELECT cid FROM blocks ORDER BY cid`, func(s string) error {
		id, err := cid.Decode(s)
		if err != nil || !id.Defined() {
			return fmt.Errorf("sqlitecas: stored key %q is not a valid CID", s)
		}
		out = append(out, id)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
