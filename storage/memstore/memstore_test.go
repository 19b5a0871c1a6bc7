package memstore

import (
	"testing"

	"xdao.co/mixfs/storage"
	"xdao.co/mixfs/storage/testkit"
)

func newStore(t *testing.T) storage.Store {
	t.Helper()
	return New()
}

func TestMemstore_Conformance(t *testing.T) {
	testkit.RunStoreConformance(t, newStore)
}

func TestMemstore_List(t *testing.T) {
	testkit.RunListerConformance(t, newStore)
}
