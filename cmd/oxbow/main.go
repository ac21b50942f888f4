package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/oxbowdb/oxbow/dataflow"
	"github.com/oxbowdb/oxbow/dataflow/annotations"
	"github.com/oxbowdb/oxbow/dataflow/catalog"
	"github.com/oxbowdb/oxbow/dataflow/optimize"
	"github.com/oxbowdb/oxbow/dataflow/sexpr"
)

func main() {
	var catalogPath string
	var interactive bool
	var help bool
	var verbose bool

	flag.StringVar(&catalogPath, "catalog", "", "persistent catalog path (optional)")
	flag.BoolVar(&interactive, "i", false, "interactive mode")
	flag.BoolVar(&help, "h", false, "show help")
	flag.BoolVar(&verbose, "verbose", false, "verbose mode (show optimizer annotations)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <command> [script.ox]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "A plan optimizer harness for incremental dataflow.\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  cat     show catalog sources\n")
		fmt.Fprintf(os.Stderr, "  build   build plans from a script and render them unoptimized\n")
		fmt.Fprintf(os.Stderr, "  opt     build and optimize, rendering the final plans\n")
		fmt.Fprintf(os.Stderr, "  steps   build and optimize, rendering after every pipeline stage\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s opt plan.ox                  # Optimize plans from a script\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s steps plan.ox                # Show every rewrite stage\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -catalog schemas.db cat      # List a persistent catalog\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -i                           # Interactive mode\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -verbose opt plan.ox         # Optimize with annotations\n", os.Args[0])
	}
	flag.Parse()

	if help {
		flag.Usage()
		os.Exit(0)
	}

	cat := catalog.NewMemCatalog()
	if catalogPath != "" {
		store, err := catalog.OpenBadgerCatalog(catalogPath)
		if err != nil {
			log.Fatalf("Failed to open catalog: %v", err)
		}
		if err := store.CopyInto(cat); err != nil {
			store.Close()
			log.Fatalf("Failed to read catalog: %v", err)
		}
		store.Close()
	}

	var handler annotations.Handler
	if verbose {
		formatter := annotations.NewOutputFormatter(os.Stderr)
		handler = formatter.Handle
	}

	session := &session{
		catalog:   cat,
		builder:   sexpr.NewBuilder(cat),
		optimizer: optimize.New(cat, optimize.Options{Config: dataflow.DefaultConfig(), Handler: handler}),
	}

	if interactive {
		session.runInteractive()
		return
	}

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}

	command := flag.Arg(0)
	switch command {
	case "cat":
		fmt.Print(session.catalogTable())

	case "build", "opt", "steps":
		if flag.NArg() < 2 {
			log.Fatalf("%s requires a script file", command)
		}
		script, err := os.ReadFile(flag.Arg(1))
		if err != nil {
			log.Fatalf("Failed to read script: %v", err)
		}
		if err := session.runScript(string(script), command); err != nil {
			log.Fatalf("%v", err)
		}

	default:
		log.Fatalf("Unknown command: %s (use cat, build, opt, or steps)", command)
	}
}

// session holds the catalog, builder, and optimizer shared by every form in
// a script or interactive run.
type session struct {
	catalog   *catalog.MemCatalog
	builder   *sexpr.Builder
	optimizer *optimize.Optimizer
}

// runScript parses every form in the script; defsource forms extend the
// catalog and the rest are plans processed by the given mode.
func (s *session) runScript(script, mode string) error {
	nodes, err := sexpr.ParseAll(script)
	if err != nil {
		return err
	}
	for _, node := range nodes {
		if err := s.runForm(node, mode); err != nil {
			return err
		}
	}
	return nil
}

func (s *session) runForm(node sexpr.Node, mode string) error {
	if sexpr.IsDefSource(node) {
		return s.builder.DefSource(node)
	}

	plan, err := s.builder.BuildRelation(node)
	if err != nil {
		return err
	}

	switch mode {
	case "build":
		rendered, err := s.optimizer.Render(plan)
		if err != nil {
			return err
		}
		fmt.Println(rendered)

	case "opt":
		result, err := s.optimizer.Optimize(plan)
		if err != nil {
			return err
		}
		fmt.Println(result.Rendered)
		if !result.Converged {
			fmt.Fprintln(os.Stderr, "warning: fixpoint iteration limit reached; convergence not proven")
		}

	case "steps":
		steps, result, err := s.optimizer.Steps(plan)
		if err != nil {
			return err
		}
		for _, step := range steps {
			if step.Changed {
				fmt.Printf("==> %s\n%s\n", step.Name, step.Rendered)
			} else {
				fmt.Printf("==> %s (no change)\n", step.Name)
			}
		}
		fmt.Printf("==> Final\n%s\n", result.Rendered)
	}
	return nil
}

func (s *session) runInteractive() {
	fmt.Println("=== Oxbow Interactive Mode ===")
	fmt.Println("Commands:")
	fmt.Println("  .help     - Show help")
	fmt.Println("  .exit     - Exit")
	fmt.Println("  .cat      - Show catalog sources")
	fmt.Println("  .mode M   - Set mode: build, opt, or steps (default: opt)")
	fmt.Println("  (form)    - defsource or a plan expression")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	mode := "opt"

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":

		case line == ".exit":
			return

		case line == ".help":
			fmt.Println("Enter (defsource ...) to define sources and plan expressions to optimize.")

		case line == ".cat":
			fmt.Print(s.catalogTable())

		case strings.HasPrefix(line, ".mode"):
			m := strings.TrimSpace(strings.TrimPrefix(line, ".mode"))
			switch m {
			case "build", "opt", "steps":
				mode = m
				fmt.Printf("Mode: %s\n", mode)
			default:
				fmt.Println("Expected: .mode build|opt|steps")
			}

		case strings.HasPrefix(line, "("):
			// Collect until delimiters balance.
			form := line
			for !balanced(form) {
				fmt.Print("  ")
				if !scanner.Scan() {
					return
				}
				form += "\n" + scanner.Text()
			}

			node, err := sexpr.Parse(form)
			if err != nil {
				fmt.Printf("Parse error: %v\n", err)
				continue
			}
			if err := s.runForm(*node, mode); err != nil {
				fmt.Printf("Error: %v\n", err)
			}

		default:
			fmt.Println("Unknown command. Use .help for help.")
		}
	}
}

// catalogTable renders the catalog as a markdown table.
func (s *session) catalogTable() string {
	names := s.catalog.SourceNames()
	if len(names) == 0 {
		return "_Empty catalog_\n"
	}

	out := &strings.Builder{}
	table := tablewriter.NewTable(out,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)
	table.Header([]string{"Source", "Columns", "Keys"})
	for _, name := range names {
		typ, err := s.catalog.SourceType(name)
		if err != nil {
			continue
		}
		table.Append([]string{
			name,
			dataflow.FormatColumnTypes(typ.Columns),
			dataflow.FormatKeys(typ.Keys()),
		})
	}
	table.Render()
	fmt.Fprintf(out, "\n_%d sources_\n", len(names))
	return out.String()
}

// balanced reports whether every paren and bracket in the input is closed,
// skipping strings and line comments.
func balanced(input string) bool {
	depth := 0
	inString := false
	inComment := false
	escaped := false
	for _, r := range input {
		switch {
		case inComment:
			if r == '\n' {
				inComment = false
			}
		case inString:
			if escaped {
				escaped = false
			} else if r == '\\' {
				escaped = true
			} else if r == '"' {
				inString = false
			}
		case r == '"':
			inString = true
		case r == ';':
			inComment = true
		case r == '(' || r == '[':
			depth++
		case r == ')' || r == ']':
			depth--
		}
	}
	return depth <= 0 && !inString
}
