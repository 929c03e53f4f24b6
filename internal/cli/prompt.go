package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/halyard-dev/halyard/internal/config"
	"github.com/halyard-dev/halyard/internal/httpx"
	"github.com/halyard-dev/halyard/internal/navsync"
	"github.com/halyard-dev/halyard/internal/overwrite"
)

// stdinPrompter answers overwrite and navigation-sync questions on the
// terminal. All prompts block the calling operation until answered.
type stdinPrompter struct {
	in *bufio.Reader
}

func newStdinPrompter() *stdinPrompter {
	return &stdinPrompter{in: bufio.NewReader(os.Stdin)}
}

// ResolveConflict asks what to do with a destination that already exists.
func (p *stdinPrompter) ResolveConflict(ctx context.Context, c overwrite.Conflict) (overwrite.Decision, error) {
	fmt.Printf("\nFile '%s' already exists (%d bytes, %s).\n",
		c.Name, c.Existing.Size, c.Existing.ModTime.Format("2006-01-02 15:04"))
	fmt.Println("What would you like to do?")
	fmt.Println("  1. Overwrite - Replace the existing file")
	fmt.Println("  2. Overwrite all - Replace every existing file in this batch")
	fmt.Println("  3. Skip - Keep the existing file")
	fmt.Println("  4. Skip all - Keep every existing file in this batch")
	fmt.Println("  5. Rename - Transfer under a new name")
	fmt.Println("  6. Rename all - Rename every conflicting file in this batch")
	fmt.Println("  7. Cancel - Stop the batch")
	fmt.Print("Choose [1-7]: ")

	input, err := p.readLine(ctx)
	if err != nil {
		return overwrite.Decision{Action: overwrite.ActionCancel}, err
	}

	switch input {
	case "1":
		return overwrite.Decision{Action: overwrite.ActionOverwrite}, nil
	case "2":
		return overwrite.Decision{Action: overwrite.ActionOverwrite, ApplyToAll: true}, nil
	case "3":
		return overwrite.Decision{Action: overwrite.ActionSkip}, nil
	case "4":
		return overwrite.Decision{Action: overwrite.ActionSkip, ApplyToAll: true}, nil
	case "5":
		return overwrite.Decision{Action: overwrite.ActionRename}, nil
	case "6":
		return overwrite.Decision{Action: overwrite.ActionRename, ApplyToAll: true}, nil
	case "7":
		return overwrite.Decision{Action: overwrite.ActionCancel}, nil
	default:
		fmt.Println("Invalid choice, please try again.")
		return p.ResolveConflict(ctx, c)
	}
}

// ResolveMissingDir asks what to do when a mirrored directory does not
// exist on the other tree.
func (p *stdinPrompter) ResolveMissingDir(ctx context.Context, tree, path string) (navsync.MissingDirChoice, error) {
	fmt.Printf("\nDirectory '%s' does not exist on the %s side.\n", path, tree)
	fmt.Println("What would you like to do?")
	fmt.Println("  1. Create - Create the directory and keep mirroring")
	fmt.Println("  2. Disable - Turn synchronized navigation off")
	fmt.Println("  3. Cancel - Abort this navigation")
	fmt.Print("Choose [1-3]: ")

	input, err := p.readLine(ctx)
	if err != nil {
		return navsync.ChoiceCancel, err
	}

	switch input {
	case "1":
		return navsync.ChoiceCreate, nil
	case "2":
		return navsync.ChoiceDisable, nil
	case "3":
		return navsync.ChoiceCancel, nil
	default:
		fmt.Println("Invalid choice, please try again.")
		return p.ResolveMissingDir(ctx, tree, path)
	}
}

// readLine reads one trimmed line, honoring context cancellation between
// the prompt and the answer.
func (p *stdinPrompter) readLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := p.in.ReadString('\n')
		ch <- result{strings.TrimSpace(line), err}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		return r.line, r.err
	}
}

// promptProxyPassword fills in the proxy password when the settings carry a
// user but no password. Passwords are never persisted.
func promptProxyPassword(proxy *config.ProxySettings) error {
	if !httpx.NeedsProxyPassword(*proxy) {
		return nil
	}
	fmt.Fprintf(os.Stderr, "Proxy password for %s@%s: ", proxy.User, proxy.Host)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("read proxy password: %w", err)
	}
	proxy.Password = string(pw)
	return nil
}

// promptPassword reads a secret without echo, for connection URLs given
// without one.
func promptPassword(label string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", label)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}
