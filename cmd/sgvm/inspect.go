package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/chazu/sigvm/vm/savestate"
)

func inspectCommand(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: sgvm inspect file...\n")
	}
	fs.Parse(args)
	if fs.NArg() == 0 {
		fs.Usage()
		return fmt.Errorf("no files given")
	}
	for _, path := range fs.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		fmt.Printf("%s:\n", path)
		if err := inspect(data, savestate.DefaultLimits()); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

func inspect(data []byte, limits savestate.Limits) error {
	kind, gen := savestate.Sniff(data)
	fmt.Printf("  kind:       %s (generation %d, %d bytes)\n", kind, gen, len(data))
	switch kind {
	case savestate.KindPersistent:
		s, err := savestate.DecodePersistent(data, limits)
		if err != nil {
			return err
		}
		printPersistent(s)
	case savestate.KindLocal:
		s, err := savestate.DecodeLocal(data, limits)
		if err != nil {
			return err
		}
		printLocal(s)
	case savestate.KindEndSave:
		s, err := savestate.DecodeEndSave(data, limits)
		if err != nil {
			return err
		}
		fmt.Printf("  saved:      %s\n", formatStamp(s.Stamp))
		fmt.Printf("  history:    %d entries\n", len(s.History))
		printLocal(&s.Local)
	case savestate.KindSlot:
		s, err := savestate.DecodeSlot(data, limits)
		if err != nil {
			return err
		}
		fmt.Printf("  saved:      %s\n", formatStamp(s.Stamp))
		fmt.Printf("  title:      %q\n", s.Title)
		fmt.Printf("  message:    %q\n", s.Message)
		if s.State != nil {
			printLocal(s.State)
		}
	default:
		return fmt.Errorf("unrecognized file")
	}
	return nil
}

func printPersistent(s *savestate.PersistentState) {
	var ints, strs int
	for _, b := range s.Flags.Ints {
		ints += len(b)
	}
	for _, b := range s.Flags.Strs {
		strs += len(b)
	}
	fmt.Printf("  flags:      %d int banks (%d values), %d str banks (%d values)\n",
		len(s.Flags.Ints), ints, len(s.Flags.Strs), strs)
	fmt.Printf("  points:     save=%v sel=%v\n", s.SavePointExists, s.SelPointExists)
}

func printLocal(s *savestate.LocalState) {
	fmt.Printf("  position:   %s pc=%d line=%d\n", s.Cursor.Scene, s.Cursor.PC, s.Cursor.Line)
	if s.Title != "" {
		fmt.Printf("  title:      %q\n", s.Title)
	}
	fmt.Printf("  frames:     %d\n", len(s.Frames))
	fmt.Printf("  stack:      %d ints, %d strs, %d groups\n", len(s.IntStack), len(s.StrStack), len(s.Marks))
	printPersistent(&s.Persistent)
}

func formatStamp(s savestate.Stamp) string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d.%03d",
		s.Year, s.Month, s.Day, s.Hour, s.Minute, s.Second, s.Millisecond)
}
