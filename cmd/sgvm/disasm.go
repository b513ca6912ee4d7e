package main

import (
	"context"
	"flag"
	"fmt"
	"slices"

	"github.com/chazu/sigvm/scene"
)

func disasmCommand(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("disasm", flag.ExitOnError)
	dir := fs.String("C", ".", "Project directory (searched upward for sigvm.toml)")
	bundle := fs.String("bundle", "", "Scene bundle (overrides project.bundle)")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: sgvm disasm [options] [scene...]\n\nWith no scenes, lists the scenes of the bundle.\n\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	m, err := loadManifest(*dir)
	if err != nil {
		return err
	}
	configureLog(m, -1)

	path := m.BundlePath()
	if *bundle != "" {
		path = *bundle
	}
	if path == "" {
		return fmt.Errorf("no scene bundle: set project.bundle or pass -bundle")
	}
	provider, err := scene.LoadBundle(path)
	if err != nil {
		return err
	}

	if fs.NArg() == 0 {
		names := provider.Names()
		slices.Sort(names)
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	}
	for _, name := range fs.Args() {
		prog, err := provider.Scene(name)
		if err != nil {
			return err
		}
		text, err := scene.Disassemble(prog)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		fmt.Printf("; scene %s\n%s\n", name, text)
	}
	return nil
}
