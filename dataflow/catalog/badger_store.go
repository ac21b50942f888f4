package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/oxbowdb/oxbow/dataflow"
)

// keyPrefix namespaces schema records inside the store.
const keyPrefix = "schema/"

// BadgerCatalog persists source schemas in BadgerDB so a catalog built once
// can serve many harness runs.
type BadgerCatalog struct {
	db *badger.DB
}

// OpenBadgerCatalog opens (or creates) a catalog database at path.
func OpenBadgerCatalog(path string) (*BadgerCatalog, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // keep BadgerDB chatter out of harness output

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &BadgerCatalog{db: db}, nil
}

// Close closes the underlying database.
func (c *BadgerCatalog) Close() error {
	return c.db.Close()
}

// Define persists a source schema, replacing any existing definition.
func (c *BadgerCatalog) Define(name string, columns []dataflow.ColumnType, keys [][]int) error {
	typ := dataflow.NewRelationType(columns).WithKeys(keys)
	if err := typ.Validate(); err != nil {
		return fmt.Errorf("defsource %s: %w", name, err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(keyPrefix+name), EncodeSchema(typ)); err != nil {
			return fmt.Errorf("failed to write schema for %s: %w", name, err)
		}
		return nil
	})
}

// SourceType resolves a source name.
func (c *BadgerCatalog) SourceType(name string) (dataflow.RelationType, error) {
	var typ dataflow.RelationType
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + name))
		if err == badger.ErrKeyNotFound {
			return &ErrUnknownSource{Name: name}
		}
		if err != nil {
			return fmt.Errorf("failed to read schema for %s: %w", name, err)
		}
		return item.Value(func(val []byte) error {
			decoded, err := DecodeSchema(val)
			if err != nil {
				return fmt.Errorf("schema for %s: %w", name, err)
			}
			typ = decoded
			return nil
		})
	})
	if err != nil {
		return dataflow.RelationType{}, err
	}
	return typ, nil
}

// SourceNames returns all defined names, sorted.
func (c *BadgerCatalog) SourceNames() []string {
	var names []string
	_ = c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			names = append(names, strings.TrimPrefix(key, keyPrefix))
		}
		return nil
	})
	sort.Strings(names)
	return names
}

// CopyInto loads every persisted schema into an in-memory catalog, which
// the optimizer then reads without touching the database again.
func (c *BadgerCatalog) CopyInto(mem *MemCatalog) error {
	for _, name := range c.SourceNames() {
		typ, err := c.SourceType(name)
		if err != nil {
			return err
		}
		if err := mem.Define(name, typ.Columns, typ.Keys()); err != nil {
			return err
		}
	}
	return nil
}
