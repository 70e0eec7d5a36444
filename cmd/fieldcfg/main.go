// fieldcfg inspects and edits the persisted field schema.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/schema"
)

func main() {
	var (
		path   = flag.String("path", "", "schema file (default: FIELDS_PATH env or field_config.json)")
		list   = flag.Bool("list", false, "print the configured fields")
		add    = flag.String("add", "", "add a field given as a JSON definition")
		remove = flag.String("remove", "", "remove the named field")
		seed   = flag.String("seed", "", "reset to built-in defaults: invoice or drawing")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	if *path == "" {
		*path = common.LoadConfig().Extract.FieldsPath
	}

	store := schema.Open(*path, nil, logger)
	changed := false

	switch {
	case *seed != "":
		defs, err := defaultsFor(*seed)
		if err != nil {
			fail(err)
		}
		for _, name := range store.Names() {
			store.Remove(name)
		}
		for _, def := range defs {
			store.Add(def)
		}
		changed = true
		fmt.Printf("seeded %d %s fields\n", store.Len(), *seed)

	case *add != "":
		var def schema.FieldDefinition
		if err := json.Unmarshal([]byte(*add), &def); err != nil {
			fail(fmt.Errorf("parse -add definition: %w", err))
		}
		if !store.Add(def) {
			fail(fmt.Errorf("field definition rejected: %s", def.Name))
		}
		changed = true
		fmt.Printf("added %s (%d fields)\n", def.Name, store.Len())

	case *remove != "":
		if !store.Remove(*remove) {
			fail(fmt.Errorf("no field named %s", *remove))
		}
		changed = true
		fmt.Printf("removed %s (%d fields)\n", *remove, store.Len())

	case *list:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(store.All()); err != nil {
			fail(err)
		}

	default:
		fmt.Fprintln(os.Stderr, "usage: fieldcfg [-path file] -list | -add '<json>' | -remove <name> | -seed invoice|drawing")
		os.Exit(2)
	}

	if changed && !store.Save(*path) {
		fail(fmt.Errorf("save schema to %s", *path))
	}
}

func defaultsFor(kind string) ([]schema.FieldDefinition, error) {
	switch kind {
	case "invoice":
		return schema.InvoiceDefaults(), nil
	case "drawing":
		return schema.DrawingDefaults(), nil
	default:
		return nil, fmt.Errorf("unknown seed %q, want invoice or drawing", kind)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
