package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/halyard-dev/halyard/internal/backend"
	"github.com/halyard-dev/halyard/internal/backend/dial"
	"github.com/halyard-dev/halyard/internal/config"
	"github.com/halyard-dev/halyard/internal/events"
	"github.com/halyard-dev/halyard/internal/localfs"
	"github.com/halyard-dev/halyard/internal/navsync"
	"github.com/halyard-dev/halyard/internal/overwrite"
	"github.com/halyard-dev/halyard/internal/pathutil"
	"github.com/halyard-dev/halyard/internal/progress"
	"github.com/halyard-dev/halyard/internal/session"
	"github.com/halyard-dev/halyard/internal/transfer"
)

// shell is the interactive session environment: multiple live connections,
// a remote and a local tree per session, synchronized navigation, and a
// sequential transfer queue.
type shell struct {
	store    *session.Store
	sync     *navsync.Engine
	runner   *transfer.Runner
	bus      *events.EventBus
	settings *config.Settings
	prompter *stdinPrompter
	in       *bufio.Reader
}

func newShellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive session shell",
		Long: `Open the interactive shell. Multiple sessions can be connected at once;
one is active at any time and all commands address it. Type "help" inside
the shell for the command list.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(GetContext())
		},
	}
}

func runShell(ctx context.Context) error {
	settings := loadSettings()
	if err := promptProxyPassword(&settings.Proxy); err != nil {
		return err
	}

	bus := events.NewEventBus(0)
	defer bus.Close()

	prompter := newStdinPrompter()
	local := &localfs.Tree{Options: localfs.ListOptions{IncludeHidden: showHidden || settings.ShowHiddenFiles}}
	dialer := dial.New(settings.Proxy, GetLogger().With().Logger())

	sh := &shell{
		store:    session.NewStore(dialer, local, bus, GetLogger()),
		sync:     navsync.NewEngine(prompter, local, bus, GetLogger()),
		runner:   transfer.NewRunner(overwrite.NewResolver(settings.Policy(), prompter), bus, GetLogger()),
		bus:      bus,
		settings: settings,
		prompter: prompter,
		in:       bufio.NewReader(os.Stdin),
	}

	sup := session.NewSupervisor(sh.store, bus, GetLogger())
	supCtx, stopSup := context.WithCancel(ctx)
	defer stopSup()
	go sup.Run(supCtx)

	fmt.Println("halyard " + Version + " - type \"help\" for commands, \"exit\" to leave")

	for {
		fmt.Print(sh.promptString())
		line, err := sh.in.ReadString('\n')
		if err != nil {
			fmt.Println()
			break
		}
		fields := strings.Fields(strings.TrimSpace(line))
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "exit" || fields[0] == "quit" {
			break
		}
		if err := sh.dispatch(ctx, fields[0], fields[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		if ctx.Err() != nil {
			break
		}
	}

	// Close every session on the way out.
	for _, s := range sh.store.Sessions() {
		_ = sh.store.Close(context.Background(), s.ID)
	}
	return nil
}

func (sh *shell) promptString() string {
	s := sh.store.Active()
	if s == nil {
		return "halyard> "
	}
	return fmt.Sprintf("%s:%s> ", s.Name, s.RemotePath())
}

func (sh *shell) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help":
		sh.printHelp()
		return nil
	case "connect":
		return sh.cmdConnect(ctx, args)
	case "sessions":
		return sh.cmdSessions()
	case "switch":
		return sh.cmdSwitch(ctx, args)
	case "close":
		return sh.cmdClose(ctx, args)
	case "ls":
		return sh.cmdList(ctx, "remote")
	case "lls":
		return sh.cmdList(ctx, "local")
	case "cd":
		return sh.cmdCd(ctx, args)
	case "lcd":
		return sh.cmdLcd(ctx, args)
	case "get":
		return sh.cmdTransfer(ctx, transfer.DirectionDownload, args)
	case "put":
		return sh.cmdTransfer(ctx, transfer.DirectionUpload, args)
	case "mkdir":
		return sh.cmdMkdir(ctx, args)
	case "rm":
		return sh.cmdRemove(ctx, args)
	case "rmdir":
		return sh.cmdRemoveDir(ctx, args)
	case "rename":
		return sh.cmdRename(ctx, args)
	case "sync":
		return sh.cmdSync(args)
	case "policy":
		return sh.cmdPolicy(args)
	case "caps":
		return sh.cmdCapabilities(ctx)
	}
	return fmt.Errorf("unknown command %q, try \"help\"", cmd)
}

func (sh *shell) printHelp() {
	fmt.Print(`Commands:
  connect <name> <url>   open a new session (see "halyard --help" for URL schemes)
  connect <saved-name>   re-open a remembered session
  sessions               list open sessions
  switch <name|id>       make another session active
  close [name|id]        close a session (active one when omitted)
  ls / lls               list the remote / local directory
  cd <path>              change the remote directory
  lcd <path>             change the local directory
  get <name>...          download files to the local directory
  put <name>...          upload files to the remote directory
  mkdir <path>           create a remote directory
  rm <name>              delete a remote file
  rmdir [-r] <path>      delete a remote directory
  rename <from> <to>     rename a remote entry
  sync on|off            toggle synchronized navigation
  policy [value]         show or set the overwrite policy for this shell
  caps                   show optional backend capabilities
  exit                   close all sessions and leave
`)
}

func (sh *shell) active() (*session.Session, error) {
	s := sh.store.Active()
	if s == nil {
		return nil, errors.New("no active session, connect first")
	}
	return s, nil
}

func (sh *shell) cmdConnect(ctx context.Context, args []string) error {
	var name string
	var params backend.ConnectionParams
	remotePath := "/"
	localPath := ""

	switch len(args) {
	case 1:
		// Re-open a remembered session by name. Stripped secrets are
		// prompted for again.
		rs, err := lookupRemembered(args[0])
		if err != nil {
			return err
		}
		name, params = rs.Name, rs.Params
		remotePath, localPath = rs.RemotePath, rs.LocalPath
	case 2:
		var err error
		name = args[0]
		params, err = parseTarget(args[1])
		if err != nil {
			return err
		}
	default:
		return errors.New("usage: connect <name> <url> | connect <saved-name>")
	}

	if err := completeCredentials(&params); err != nil {
		return err
	}

	if localPath == "" {
		cwd, err := os.Getwd()
		if err != nil {
			cwd = string(filepath.Separator)
		}
		localPath = cwd
	}

	s, err := sh.store.Create(ctx, name, params, remotePath, localPath)
	if err != nil {
		return err
	}
	fmt.Printf("connected %s (%s)\n", s.Name, s.BackendLabel())
	sh.rememberSession(s)
	return sh.cmdList(ctx, "remote")
}

// lookupRemembered finds a saved session by name.
func lookupRemembered(name string) (config.RememberedSession, error) {
	p, err := config.SessionsPath()
	if err != nil {
		return config.RememberedSession{}, err
	}
	known, err := config.LoadSessions(p)
	if err != nil {
		return config.RememberedSession{}, err
	}
	for _, rs := range known {
		if rs.Name == name {
			return rs, nil
		}
	}
	return config.RememberedSession{}, fmt.Errorf("no saved session %q (try: sessions list)", name)
}

// rememberSession persists the connection (secrets stripped) for later
// shells. Failures only warn; remembering is a convenience.
func (sh *shell) rememberSession(s *session.Session) {
	p, err := config.SessionsPath()
	if err != nil {
		return
	}
	if _, err := config.EnsureDirectory(); err != nil {
		return
	}
	known, _ := config.LoadSessions(p)
	known = config.Remember(known, config.RememberedSession{
		Name:       s.Name,
		Params:     s.Params(),
		RemotePath: s.RemotePath(),
		LocalPath:  s.LocalPath(),
	})
	if err := config.SaveSessions(p, known); err != nil {
		GetLogger().Warn().Err(err).Msg("could not remember session")
	}
}

func (sh *shell) cmdSessions() error {
	if sh.store.Len() == 0 {
		fmt.Println("no open sessions")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "\tNAME\tBACKEND\tSTATUS\tREMOTE\tLOCAL")
	for _, s := range sh.store.Sessions() {
		marker := " "
		if a := sh.store.Active(); a != nil && a.ID == s.ID {
			marker = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			marker, s.Name, s.BackendLabel(), s.Status(), s.RemotePath(), s.LocalPath())
	}
	return w.Flush()
}

func (sh *shell) cmdSwitch(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: switch <name|id>")
	}
	s, err := sh.findSession(args[0])
	if err != nil {
		return err
	}
	if err := sh.store.Switch(ctx, s.ID); err != nil {
		// The session stays usable with cached listings.
		fmt.Fprintf(os.Stderr, "reconnect failed, showing cached state: %v\n", err)
		return nil
	}
	fmt.Printf("switched to %s\n", s.Name)
	return nil
}

func (sh *shell) cmdClose(ctx context.Context, args []string) error {
	var s *session.Session
	var err error
	if len(args) == 0 {
		s, err = sh.active()
	} else {
		s, err = sh.findSession(args[0])
	}
	if err != nil {
		return err
	}
	if err := sh.store.Close(ctx, s.ID); err != nil {
		return err
	}
	fmt.Printf("closed %s\n", s.Name)
	return nil
}

func (sh *shell) findSession(key string) (*session.Session, error) {
	if s, ok := sh.store.Get(key); ok {
		return s, nil
	}
	for _, s := range sh.store.Sessions() {
		if s.Name == key {
			return s, nil
		}
	}
	return nil, fmt.Errorf("no session %q", key)
}

func (sh *shell) cmdList(ctx context.Context, tree string) error {
	s, err := sh.active()
	if err != nil {
		return err
	}

	var l *backend.Listing
	if tree == "remote" {
		l, err = s.RefreshRemote(ctx)
	} else {
		l, err = s.RefreshLocal()
	}
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
}

func (sh *shell) cmdCd(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: cd <path>")
	}
	s, err := sh.active()
	if err != nil {
		return err
	}

	prev := s.RemotePath()
	target := args[0]
	if !path.IsAbs(target) {
		target = path.Join(prev, target)
	}

	if _, err := s.NavigateRemote(ctx, target); err != nil {
		return err
	}
	if err := sh.sync.MirrorRemoteChange(ctx, s, prev, target); err != nil {
		if errors.Is(err, navsync.ErrNavigationCancelled) {
			fmt.Println("navigation cancelled")
			return nil
		}
		return err
	}
	return nil
}

func (sh *shell) cmdLcd(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: lcd <path>")
	}
	s, err := sh.active()
	if err != nil {
		return err
	}

	prev := s.LocalPath()
	target := args[0]
	if !filepath.IsAbs(target) && !strings.HasPrefix(target, "~") {
		target = filepath.Join(prev, target)
	}
	target, err = pathutil.Resolve(target)
	if err != nil {
		return err
	}

	if _, err := s.NavigateLocal(target); err != nil {
		return err
	}
	if err := sh.sync.MirrorLocalChange(ctx, s, prev, target); err != nil {
		if errors.Is(err, navsync.ErrNavigationCancelled) {
			fmt.Println("navigation cancelled")
			return nil
		}
		return err
	}
	return nil
}

// cmdTransfer queues the named files as one batch and runs it to
// completion. The batch is strictly sequential; Ctrl+C cancels at the next
// item boundary.
func (sh *shell) cmdTransfer(ctx context.Context, direction transfer.Direction, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: %s <name>...",
			map[transfer.Direction]string{transfer.DirectionDownload: "get", transfer.DirectionUpload: "put"}[direction])
	}
	s, err := sh.active()
	if err != nil {
		return err
	}

	items, err := sh.buildItems(ctx, s, direction, args)
	if err != nil {
		return err
	}

	b := transfer.NewBatch(s.ID, string(direction), items)
	ui := progress.NewBatchUI(sh.bus)
	done := make(chan struct{})
	go func() {
		ui.Run(b.ID)
		close(done)
	}()

	_, runErr := sh.runner.Run(ctx, b, s.Executor())
	<-done

	// Refresh the destination tree so the new files show up.
	if direction == transfer.DirectionUpload {
		_, _ = s.RefreshRemote(ctx)
	} else {
		_, _ = s.RefreshLocal()
	}
	return runErr
}

// buildItems resolves the named source entries against the source tree's
// current listing.
func (sh *shell) buildItems(ctx context.Context, s *session.Session, direction transfer.Direction, names []string) ([]*transfer.Item, error) {
	var src *backend.Listing
	var err error
	var destDir string

	if direction == transfer.DirectionUpload {
		src, err = s.RefreshLocal()
		destDir = s.RemotePath()
	} else {
		src, err = s.RefreshRemote(ctx)
		destDir = s.LocalPath()
	}
	if err != nil {
		return nil, err
	}

	var items []*transfer.Item
	for _, name := range names {
		e, ok := src.Find(name)
		if !ok {
			return nil, fmt.Errorf("no such file %q", name)
		}
		if e.IsDir {
			return nil, fmt.Errorf("%q is a directory", name)
		}
		items = append(items, transfer.NewItem(direction, e.Name, e.Path, destDir, e.Size, e.ModTime))
	}
	return items, nil
}

func (sh *shell) cmdMkdir(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: mkdir <path>")
	}
	s, err := sh.active()
	if err != nil {
		return err
	}
	target := args[0]
	if !path.IsAbs(target) {
		target = path.Join(s.RemotePath(), target)
	}
	if err := s.MakeRemoteDir(ctx, target); err != nil {
		return err
	}
	_, err = s.RefreshRemote(ctx)
	return err
}

func (sh *shell) cmdRemove(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: rm <name>")
	}
	s, err := sh.active()
	if err != nil {
		return err
	}
	if err := s.DeleteRemoteFile(ctx, path.Join(s.RemotePath(), args[0])); err != nil {
		return err
	}
	_, err = s.RefreshRemote(ctx)
	return err
}

func (sh *shell) cmdRemoveDir(ctx context.Context, args []string) error {
	recursive := false
	if len(args) > 0 && args[0] == "-r" {
		recursive = true
		args = args[1:]
	}
	if len(args) != 1 {
		return errors.New("usage: rmdir [-r] <path>")
	}
	s, err := sh.active()
	if err != nil {
		return err
	}
	target := args[0]
	if !path.IsAbs(target) {
		target = path.Join(s.RemotePath(), target)
	}
	if err := s.DeleteRemoteDir(ctx, target, recursive); err != nil {
		return err
	}
	_, err = s.RefreshRemote(ctx)
	return err
}

func (sh *shell) cmdRename(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: rename <from> <to>")
	}
	s, err := sh.active()
	if err != nil {
		return err
	}
	from := path.Join(s.RemotePath(), args[0])
	to := path.Join(s.RemotePath(), args[1])
	if err := s.RenameRemote(ctx, from, to); err != nil {
		return err
	}
	_, err = s.RefreshRemote(ctx)
	return err
}

func (sh *shell) cmdSync(args []string) error {
	s, err := sh.active()
	if err != nil {
		return err
	}
	if len(args) != 1 {
		enabled, base := s.SyncState()
		if enabled {
			fmt.Printf("sync on (%s <-> %s)\n", base.Remote, base.Local)
		} else {
			fmt.Println("sync off")
		}
		return nil
	}
	switch args[0] {
	case "on":
		sh.sync.Enable(s)
		_, base := s.SyncState()
		fmt.Printf("sync on, base pair %s <-> %s\n", base.Remote, base.Local)
	case "off":
		sh.sync.Disable(s)
		fmt.Println("sync off")
	default:
		return errors.New("usage: sync on|off")
	}
	return nil
}

// cmdPolicy shows or changes the overwrite policy. A change applies to
// future batches in this shell and is persisted.
func (sh *shell) cmdPolicy(args []string) error {
	if len(args) == 0 {
		fmt.Println(sh.settings.OverwritePolicy)
		return nil
	}
	policy, err := overwrite.ParsePolicy(args[0])
	if err != nil {
		return err
	}
	sh.settings.OverwritePolicy = string(policy)
	sh.runner = transfer.NewRunner(overwrite.NewResolver(policy, sh.prompter), sh.bus, GetLogger())

	if p, err := config.SettingsPath(); err == nil {
		if _, err := config.EnsureDirectory(); err == nil {
			if err := sh.settings.Save(p); err != nil {
				GetLogger().Warn().Err(err).Msg("could not persist settings")
			}
		}
	}
	return nil
}

func (sh *shell) cmdCapabilities(ctx context.Context) error {
	s, err := sh.active()
	if err != nil {
		return err
	}
	caps := s.Capabilities(ctx)
	fmt.Printf("versions: %v\nthumbnails: %v\npermissions: %v\nlocking: %v\n",
		caps.Versions, caps.Thumbnails, caps.Permissions, caps.Locking)
	return nil
}
