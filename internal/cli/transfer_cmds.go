package cli

import (
	"context"
	"fmt"
	"os"
	"path"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/halyard-dev/halyard/internal/backend"
	"github.com/halyard-dev/halyard/internal/backend/dial"
	"github.com/halyard-dev/halyard/internal/events"
	"github.com/halyard-dev/halyard/internal/localfs"
	"github.com/halyard-dev/halyard/internal/overwrite"
	"github.com/halyard-dev/halyard/internal/pathutil"
	"github.com/halyard-dev/halyard/internal/progress"
	"github.com/halyard-dev/halyard/internal/session"
	"github.com/halyard-dev/halyard/internal/transfer"
)

// oneShot bundles the pieces a single scripted command needs: one session,
// one batch, teardown at the end.
type oneShot struct {
	store *session.Store
	bus   *events.EventBus
	sess  *session.Session
}

// openOneShot connects a throwaway session for a scripted command.
func openOneShot(ctx context.Context, raw, remoteDir, localDir string) (*oneShot, error) {
	settings := loadSettings()
	if err := promptProxyPassword(&settings.Proxy); err != nil {
		return nil, err
	}

	params, err := parseTarget(raw)
	if err != nil {
		return nil, err
	}
	if err := completeCredentials(&params); err != nil {
		return nil, err
	}

	localDir, err = pathutil.Resolve(localDir)
	if err != nil {
		return nil, err
	}
	if remoteDir == "" {
		remoteDir = "/"
	}

	bus := events.NewEventBus(0)
	local := &localfs.Tree{Options: localfs.ListOptions{IncludeHidden: showHidden || settings.ShowHiddenFiles}}
	store := session.NewStore(dial.New(settings.Proxy, GetLogger().With().Logger()), local, bus, GetLogger())

	sess, err := store.Create(ctx, "oneshot", params, remoteDir, localDir)
	if err != nil {
		bus.Close()
		return nil, err
	}
	return &oneShot{store: store, bus: bus, sess: sess}, nil
}

func (o *oneShot) close() {
	_ = o.store.Close(context.Background(), o.sess.ID)
	o.bus.Close()
}

// run executes one batch with progress on the terminal.
func (o *oneShot) run(ctx context.Context, direction transfer.Direction, names []string, policy overwrite.Policy) error {
	var src *backend.Listing
	var err error
	var destDir string

	if direction == transfer.DirectionUpload {
		src, err = o.sess.RefreshLocal()
		destDir = o.sess.RemotePath()
	} else {
		src, err = o.sess.RefreshRemote(ctx)
		destDir = o.sess.LocalPath()
	}
	if err != nil {
		return err
	}

	var items []*transfer.Item
	for _, name := range names {
		e, ok := src.Find(name)
		if !ok {
			return fmt.Errorf("no such file %q", name)
		}
		if e.IsDir {
			return fmt.Errorf("%q is a directory", name)
		}
		items = append(items, transfer.NewItem(direction, e.Name, e.Path, destDir, e.Size, e.ModTime))
	}

	runner := transfer.NewRunner(overwrite.NewResolver(policy, newStdinPrompter()), o.bus, GetLogger())
	b := transfer.NewBatch(o.sess.ID, string(direction), items)

	done := make(chan struct{})
	if len(items) == 1 {
		go func() {
			driveSingleBar(o.bus, b.ID, items[0])
			close(done)
		}()
	} else {
		ui := progress.NewBatchUI(o.bus)
		go func() {
			ui.Run(b.ID)
			close(done)
		}()
	}

	stats, runErr := runner.Run(ctx, b, o.sess.Executor())
	<-done
	if runErr != nil {
		return runErr
	}
	if stats.Failed > 0 {
		return fmt.Errorf("%d of %d transfers failed", stats.Failed, stats.Total)
	}
	return nil
}

// driveSingleBar renders a lone transfer with the single-bar reporter.
func driveSingleBar(bus *events.EventBus, batchID string, it *transfer.Item) {
	ch := bus.SubscribeAll()
	defer bus.UnsubscribeAll(ch)

	bar := progress.NewSingleBar()
	started := false

	for ev := range ch {
		switch e := ev.(type) {
		case *events.TransferEvent:
			if e.BatchID != batchID {
				continue
			}
			switch e.Type() {
			case events.EventTransferStarted:
				bar.Start(e.Size, e.Name)
				started = true
			case events.EventTransferProgress:
				if started {
					bar.Update(int64(e.Progress * float64(e.Size)))
				}
			case events.EventTransferCompleted:
				bar.Finish()
			case events.EventTransferFailed:
				bar.Error(e.Err)
			}
		case *events.BatchEvent:
			if e.BatchID == batchID {
				return
			}
		}
	}
}

func newGetCmd() *cobra.Command {
	var remoteDir, localDir, policyFlag string
	cmd := &cobra.Command{
		Use:   "get <url> <name>...",
		Short: "Download files without opening a shell",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := resolvePolicy(policyFlag)
			if err != nil {
				return err
			}
			o, err := openOneShot(GetContext(), args[0], remoteDir, localDir)
			if err != nil {
				return err
			}
			defer o.close()
			return o.run(GetContext(), transfer.DirectionDownload, args[1:], policy)
		},
	}
	cmd.Flags().StringVarP(&remoteDir, "remote-dir", "r", "/", "Remote source directory")
	cmd.Flags().StringVarP(&localDir, "local-dir", "l", "", "Local destination directory (default: cwd)")
	cmd.Flags().StringVar(&policyFlag, "policy", "", "Overwrite policy (default: from settings)")
	return cmd
}

func newPutCmd() *cobra.Command {
	var remoteDir, localDir, policyFlag string
	cmd := &cobra.Command{
		Use:   "put <url> <name>...",
		Short: "Upload files without opening a shell",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := resolvePolicy(policyFlag)
			if err != nil {
				return err
			}
			o, err := openOneShot(GetContext(), args[0], remoteDir, localDir)
			if err != nil {
				return err
			}
			defer o.close()
			return o.run(GetContext(), transfer.DirectionUpload, args[1:], policy)
		},
	}
	cmd.Flags().StringVarP(&remoteDir, "remote-dir", "r", "/", "Remote destination directory")
	cmd.Flags().StringVarP(&localDir, "local-dir", "l", "", "Local source directory (default: cwd)")
	cmd.Flags().StringVar(&policyFlag, "policy", "", "Overwrite policy (default: from settings)")
	return cmd
}

func newLsCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "ls <url>",
		Short: "List a remote directory without opening a shell",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := openOneShot(GetContext(), args[0], path.Clean(dir), "")
			if err != nil {
				return err
			}
			defer o.close()

			l, err := o.sess.RefreshRemote(GetContext())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
			for _, e := range l.Entries {
				kind := "-"
				if e.IsDir {
					kind = "d"
				}
				mod := ""
				if !e.ModTime.IsZero() {
					mod = e.ModTime.Format("2006-01-02 15:04")
				}
				fmt.Fprintf(w, "%s\t%10d\t%s\t%s\n", kind, e.Size, mod, e.Name)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "/", "Remote directory to list")
	return cmd
}

// resolvePolicy picks the effective overwrite policy for a scripted
// command: the flag when given, the persisted setting otherwise.
func resolvePolicy(flag string) (overwrite.Policy, error) {
	if flag != "" {
		return overwrite.ParsePolicy(flag)
	}
	return loadSettings().Policy(), nil
}
