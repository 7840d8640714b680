package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/js-runtime/engine"
	"github.com/wippyai/js-runtime/hostfunc"
	"github.com/wippyai/js-runtime/runtime"
)

func main() {
	var (
		engineFile  = flag.String("engine", "", "Path to engine wasm build")
		scriptFile  = flag.String("file", "", "Script file to run")
		expr        = flag.String("e", "", "Inline expression to evaluate")
		interactive = flag.Bool("i", false, "Interactive REPL with TUI")
		verbose     = flag.Bool("v", false, "Verbose engine logging")
	)
	flag.Parse()

	if *engineFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: jsrun -engine <engine.wasm> -file <script.js>")
		fmt.Fprintln(os.Stderr, "       jsrun -engine <engine.wasm> -e '1 + 1'")
		fmt.Fprintln(os.Stderr, "       jsrun -engine <engine.wasm> -i  (interactive REPL)")
		os.Exit(1)
	}

	if *verbose {
		logger, err := zap.NewDevelopment()
		if err == nil {
			engine.SetLogger(logger)
		}
	}

	// With nothing to run and a terminal attached, drop into the REPL.
	repl := *interactive
	if !repl && *scriptFile == "" && *expr == "" && term.IsTerminal(int(os.Stdin.Fd())) {
		repl = true
	}

	if repl {
		if err := runInteractive(*engineFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*engineFile, *scriptFile, *expr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(engineFile, scriptFile, expr string) error {
	ctx := context.Background()

	data, err := os.ReadFile(engineFile)
	if err != nil {
		return fmt.Errorf("read engine: %w", err)
	}

	table := hostfunc.NewTable()
	defer table.Close()

	backend, err := engine.LoadEngine(ctx, data, engine.WithHostInvoker(table.Invoker()))
	if err != nil {
		return fmt.Errorf("load engine: %w", err)
	}
	defer backend.Close(ctx)

	rt, err := runtime.New(backend)
	if err != nil {
		return fmt.Errorf("create runtime: %w", err)
	}
	defer rt.Close()

	global, err := rt.NewGlobal()
	if err != nil {
		return fmt.Errorf("create global: %w", err)
	}
	defer global.Release()

	if scriptFile != "" {
		src, err := os.ReadFile(scriptFile)
		if err != nil {
			return fmt.Errorf("read script: %w", err)
		}
		if err := rt.Evaluate(global.Handle(), string(src), scriptFile, 1); err != nil {
			return err
		}
		fmt.Printf("%s: ok\n", scriptFile)
	}

	if expr != "" {
		if err := rt.Evaluate(global.Handle(), expr, "inline.js", 1); err != nil {
			return err
		}
		fmt.Println("ok")
	}

	return nil
}
