// sgvm CLI - runs, disassembles and inspects scene bundles and save files
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"

	"github.com/chazu/sigvm/manifest"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: sgvm <command> [options]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %-8s %s\n", name, commands[name].summary)
	}
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  sgvm run                        # Run the project in the current directory\n")
	fmt.Fprintf(os.Stderr, "  sgvm run -scene s01 -z 2 -auto  # Start at s01 z 2, advancing on its own\n")
	fmt.Fprintf(os.Stderr, "  sgvm disasm -bundle game.sgb s01\n")
	fmt.Fprintf(os.Stderr, "  sgvm inspect save/endsave_000.sav\n")
}

type command struct {
	summary string
	run     func(ctx context.Context, args []string) error
}

var commands = map[string]command{
	"run":     {"run a scene bundle on the console", runCommand},
	"disasm":  {"disassemble scenes of a bundle", disasmCommand},
	"inspect": {"decode a persistent, end-save or slot file", inspectCommand},
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}
	cmd, ok := commands[flag.Arg(0)]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", flag.Arg(0))
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cmd.run(ctx, flag.Args()[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// loadManifest finds sigvm.toml from dir upward, falling back to defaults.
func loadManifest(dir string) (*manifest.Manifest, error) {
	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = manifest.Default(dir)
	}
	return m, nil
}

// configureLog applies the manifest log settings; verbosity >= 0
// overrides the manifest.
func configureLog(m *manifest.Manifest, verbosity int) {
	if verbosity < 0 {
		verbosity = m.Log.Verbosity
	}
	var path *string
	if p := m.LogPath(); p != "" {
		path = &p
	}
	commonlog.Configure(verbosity, path)
}
