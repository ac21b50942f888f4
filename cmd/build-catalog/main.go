package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/oxbowdb/oxbow/dataflow"
	"github.com/oxbowdb/oxbow/dataflow/catalog"
	"github.com/oxbowdb/oxbow/dataflow/sexpr"
)

func main() {
	outPath := flag.String("out", "schemas.db", "output catalog path")
	script := flag.String("script", "", "script of (defsource ...) forms to load (optional)")
	flag.Parse()

	store, err := catalog.OpenBadgerCatalog(*outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open catalog: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	count := 0
	if *script != "" {
		count, err = loadScript(store, *script)
	} else {
		count, err = loadSamples(store)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build catalog: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Built catalog: %s\n", *outPath)
	fmt.Printf("  Sources: %d\n", count)
	for _, name := range store.SourceNames() {
		typ, err := store.SourceType(name)
		if err != nil {
			continue
		}
		fmt.Printf("  %s %s keys=%s\n", name,
			dataflow.FormatColumnTypes(typ.Columns),
			dataflow.FormatKeys(typ.Keys()))
	}
}

// loadScript defines every defsource form from a script file into the store.
func loadScript(store *catalog.BadgerCatalog, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	mem := catalog.NewMemCatalog()
	builder := sexpr.NewBuilder(mem)
	nodes, err := sexpr.ParseAll(string(data))
	if err != nil {
		return 0, err
	}

	count := 0
	for _, node := range nodes {
		if !sexpr.IsDefSource(node) {
			continue
		}
		if err := builder.DefSource(node); err != nil {
			return count, err
		}
		count++
	}

	for _, name := range mem.SourceNames() {
		typ, err := mem.SourceType(name)
		if err != nil {
			return count, err
		}
		if err := store.Define(name, typ.Columns, typ.Keys()); err != nil {
			return count, err
		}
	}
	return count, nil
}

// loadSamples installs a small demo schema set.
func loadSamples(store *catalog.BadgerCatalog) (int, error) {
	samples := []struct {
		name    string
		columns []dataflow.ColumnType
		keys    [][]int
	}{
		{
			name: "users",
			columns: []dataflow.ColumnType{
				dataflow.Col(dataflow.TypeInt64),
				dataflow.Col(dataflow.TypeString),
				dataflow.NullableCol(dataflow.TypeString),
			},
			keys: [][]int{{0}},
		},
		{
			name: "orders",
			columns: []dataflow.ColumnType{
				dataflow.Col(dataflow.TypeInt64),
				dataflow.Col(dataflow.TypeInt64),
				dataflow.Col(dataflow.TypeFloat64),
			},
			keys: [][]int{{0}},
		},
		{
			name: "regions",
			columns: []dataflow.ColumnType{
				dataflow.Col(dataflow.TypeInt32),
				dataflow.Col(dataflow.TypeString),
			},
			keys: [][]int{{0}, {1}},
		},
	}

	for _, s := range samples {
		if err := store.Define(s.name, s.columns, s.keys); err != nil {
			return 0, err
		}
	}
	return len(samples), nil
}
