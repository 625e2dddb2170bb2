// Package badgerdb implements the engine stores on an embedded Badger
// database via badgerhold. Each store owns its own subdirectory so the
// key spaces stay independent; an empty base directory opens an
// in-memory database.
package badgerdb

import (
	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"
)

func createDB(dir string, logger badger.Logger) (*badgerhold.Store, error) {
	opts := badgerhold.DefaultOptions
	opts.Logger = logger
	if dir == "" {
		opts.InMemory = true
	} else {
		opts.Dir = dir
		opts.ValueDir = dir
	}
	return badgerhold.Open(opts)
}
