package storage_test

import (
	"bytes"
	"testing"

	"xledger.io/charter/cidutil"
	"xledger.io/charter/storage"
	"xledger.io/charter/storage/localfs"
)

func newLocalFS(t *testing.T) storage.CAS {
	t.Helper()
	cas, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatalf("localfs.New: %v", err)
	}
	return cas
}

func TestMultiCAS_OrderedFallback(t *testing.T) {
	primary := newLocalFS(t)
	secondary := newLocalFS(t)
	m := storage.MultiCAS{Adapters: []storage.CAS{primary, secondary}}

	b := []byte("only in secondary")
	id, err := secondary.Put(b)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	if !m.Has(id) {
		t.Fatalf("Has: expected true via fallback")
	}
	got, err := m.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, b) {
		t.Fatalf("Get bytes mismatch")
	}
	if primary.Has(id) {
		t.Fatalf("Get must not replicate into earlier adapters")
	}
}

func TestMultiCAS_PutWritesFirstAdapterOnly(t *testing.T) {
	primary := newLocalFS(t)
	secondary := newLocalFS(t)
	m := storage.MultiCAS{Adapters: []storage.CAS{primary, secondary}}

	id, err := m.Put([]byte("front door"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !primary.Has(id) {
		t.Fatalf("primary missing object after Put")
	}
	if secondary.Has(id) {
		t.Fatalf("Put must not write to fallback adapters")
	}
}

func TestMultiCAS_Missing(t *testing.T) {
	m := storage.MultiCAS{Adapters: []storage.CAS{newLocalFS(t), newLocalFS(t)}}

	id, err := cidutil.CIDv1RawSHA256CID([]byte("nowhere"))
	if err != nil {
		t.Fatalf("CIDv1RawSHA256CID: %v", err)
	}
	if m.Has(id) {
		t.Fatalf("Has: expected false")
	}
	if _, err := m.Get(id); !storage.IsNotFound(err) {
		t.Fatalf("Get missing: got err=%v want ErrNotFound", err)
	}
}

func TestMultiCAS_NoAdapters(t *testing.T) {
	var m storage.MultiCAS
	if _, err := m.Put([]byte("x")); err == nil {
		t.Fatalf("Put with no adapters should fail")
	}
	id, err := cidutil.CIDv1RawSHA256CID([]byte("x"))
	if err != nil {
		t.Fatalf("CIDv1RawSHA256CID: %v", err)
	}
	if _, err := m.Get(id); !storage.IsNotFound(err) {
		t.Fatalf("Get with no adapters: got err=%v want ErrNotFound", err)
	}
}
