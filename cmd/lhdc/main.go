// cmd/lhdc/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"lhd/internal/diag"
	"lhd/internal/simserver"
	"lhd/internal/store"
)

func cliContext() context.Context { return context.Background() }

const version = "0.1.0"

// lhdc is a thin front end: the textual assembly lexer/parser, the
// unicode casefolding tables, and a true build pipeline are external
// collaborators per §6 and are not implemented here. What this binary
// does own is wiring the store, the simulation server, and the
// diagnostic sink the ambient stack commits to.
func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		showUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "--help", "-h", "help":
		showUsage()
	case "--version", "-v", "version":
		fmt.Println("lhdc", version)
	case "serve":
		runServe(args[1:])
	case "store":
		runStore(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "lhdc: unknown command %q\n", args[0])
		showUsage()
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`Usage: lhdc <command> [arguments]

Commands:
  serve   --addr ADDR --store DSN     start the executor/scheduler websocket server
  store   put NAME FILE --store DSN   cache a module snapshot under NAME
  store   get HASH FILE --store DSN   retrieve a cached snapshot by content hash
  version                             print the lhdc version
  help                                show this message`)
}

func flagValue(args []string, name string) (string, bool) {
	for i, a := range args {
		if a == name && i+1 < len(args) {
			return args[i+1], true
		}
	}
	return "", false
}

func runServe(args []string) {
	addr, ok := flagValue(args, "--addr")
	if !ok {
		addr = ":7777"
	}
	dsn, ok := flagValue(args, "--store")
	if !ok {
		dsn = "lhd.sqlite"
	}

	st, err := store.Open(dsn)
	if err != nil {
		fatalf("open store: %v", err)
	}
	defer st.Close()

	srv := simserver.NewServer()
	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if _, err := srv.Accept(w, r); err != nil {
			fmt.Fprintf(os.Stderr, "lhdc: accept: %v\n", err)
		}
	})
	fmt.Printf("lhdc: serving on %s (store %s)\n", addr, dsn)
	if err := http.ListenAndServe(addr, nil); err != nil {
		fatalf("serve: %v", err)
	}
}

func runStore(args []string) {
	if len(args) < 3 {
		fatalf("store: expected a subcommand, a name or hash, and a file path")
	}
	sub, key, path := args[0], args[1], args[2]
	dsn, ok := flagValue(args, "--store")
	if !ok {
		dsn = "lhd.sqlite"
	}

	st, err := store.Open(dsn)
	if err != nil {
		fatalf("open store: %v", err)
	}
	defer st.Close()

	switch sub {
	case "put":
		content, err := os.ReadFile(path)
		if err != nil {
			fatalf("read %s: %v", path, err)
		}
		hash, err := st.Put(cliContext(), key, content)
		if err != nil {
			fatalf("put: %v", err)
		}
		fmt.Println(hash)
	case "get":
		content, err := st.Get(cliContext(), key)
		if err != nil {
			fatalf("get: %v", err)
		}
		if err := os.WriteFile(path, content, 0o644); err != nil {
			fatalf("write %s: %v", path, err)
		}
	default:
		fatalf("store: unknown subcommand %q", sub)
	}
}

func fatalf(format string, args ...interface{}) {
	sink := diag.NewSink()
	sink.Errorf(format, args...)
	sink.Render(os.Stderr)
	os.Exit(1)
}
