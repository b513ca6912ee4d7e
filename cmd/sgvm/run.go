package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chazu/sigvm/driver"
	"github.com/chazu/sigvm/scene"
	"github.com/chazu/sigvm/store"
	"github.com/chazu/sigvm/vm"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

func runCommand(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	dir := fs.String("C", ".", "Project directory (searched upward for sigvm.toml)")
	bundle := fs.String("bundle", "", "Scene bundle (overrides project.bundle)")
	sceneName := fs.String("scene", "", "Start scene (overrides project.start_scene)")
	z := fs.Int("z", -1, "Start z label (overrides project.start_z)")
	auto := fs.Bool("auto", false, "Advance messages automatically")
	resume := fs.Bool("resume", false, "Resume from end-save slot 0 when present")
	verbosity := fs.Int("v", -1, "Log verbosity (overrides log.verbosity)")
	fs.Parse(args)

	m, err := loadManifest(*dir)
	if err != nil {
		return err
	}
	configureLog(m, *verbosity)

	bundlePath := m.BundlePath()
	if *bundle != "" {
		bundlePath = *bundle
	}
	if bundlePath == "" {
		return fmt.Errorf("no scene bundle: set project.bundle or pass -bundle")
	}
	provider, err := scene.LoadBundle(bundlePath)
	if err != nil {
		return err
	}

	start, startZ := m.Project.StartScene, m.Project.StartZ
	if *sceneName != "" {
		start = *sceneName
	}
	if *z >= 0 {
		startZ = int32(*z)
	}

	if err := os.MkdirAll(m.SaveDir(), 0o755); err != nil {
		return err
	}
	limits := m.DecodeLimits()
	db, err := store.OpenSlotDB(m.DatabasePath(), limits)
	if err != nil {
		return err
	}
	defer db.Close()
	persister := &driver.StorePersister{
		PersistentPath: filepath.Join(m.SaveDir(), "persistent.sav"),
		EndSaves:       &store.EndSaveDir{Dir: m.SaveDir()},
		Slots:          db,
		Limits:         limits,
	}

	host := driver.NewChannelHost(64)
	v := vm.New(provider, host, m.VMConfig())
	if err := v.Start(start, startZ); err != nil {
		return err
	}
	if err := persister.Restore(ctx, v); err != nil {
		return fmt.Errorf("restore saved state: %w", err)
	}
	if *resume && v.PendingEndSave() != nil && !v.RunProcedure(vm.ProcEndLoad) {
		return fmt.Errorf("end-save could not be resumed")
	}
	driver.Attach(ctx, host, v, persister)

	host.SetAutoAdvance(*auto || !term.IsTerminal(int(os.Stdin.Fd())))
	sess := driver.NewSession(v, host)

	var g errgroup.Group
	g.Go(func() error {
		present(host, bufio.NewReader(os.Stdin))
		return nil
	})
	out, err := sess.Run(ctx)
	host.Close()
	g.Wait()
	if err != nil {
		return err
	}
	fmt.Printf("-- %s\n", out.Status)
	return nil
}

// present prints the event stream and feeds Enter presses back as
// advances until the host closes.
func present(host *driver.ChannelHost, in *bufio.Reader) {
	var speaker string
	var where vm.Location
	for ev := range host.Events() {
		switch ev.Kind {
		case driver.EventName:
			speaker = ev.Text
		case driver.EventText:
			if speaker != "" {
				fmt.Printf("%s: ", speaker)
				speaker = ""
			}
			fmt.Println(ev.Text)
			if host.AutoAdvance() {
				continue
			}
			if _, err := in.ReadString('\n'); err != nil {
				host.SetAutoAdvance(true)
			}
			host.Advance()
		case driver.EventLocation:
			loc := ev.Data.(vm.Location)
			if loc.Scene != where.Scene || loc.Title != where.Title {
				fmt.Printf("== %s %s\n", loc.Scene, loc.Title)
			}
			where = loc
		case driver.EventProcedure:
			step := ev.Data.(driver.ProcedureStep)
			fmt.Printf("-- %s: %s\n", step.Procedure, step.Step)
		case driver.EventError, driver.EventFatal:
			fmt.Fprintf(os.Stderr, "%s: %s\n", ev.Kind, ev.Text)
		}
	}
}
