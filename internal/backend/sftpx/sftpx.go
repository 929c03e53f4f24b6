// Package sftpx adapts SFTP over SSH to the legacy command surface.
package sftpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"

	"github.com/halyard-dev/halyard/internal/backend"
	"github.com/halyard-dev/halyard/internal/constants"
)

// Commander speaks SFTP through the legacy command surface. SFTP itself has
// no server-side working directory, so the commander tracks one client-side
// to honor the change-directory/list contract.
type Commander struct {
	opts backend.SFTPOptions

	mu     sync.Mutex
	ssh    *ssh.Client
	client *sftp.Client
	cwd    string
}

// New creates an unconnected commander.
func New(opts backend.SFTPOptions) *Commander {
	if opts.Port == 0 {
		opts.Port = 22
	}
	return &Commander{opts: opts, cwd: "/"}
}

func (c *Commander) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked()
}

func (c *Commander) connectLocked() error {
	auth, err := c.authMethods()
	if err != nil {
		return backend.NewError(backend.OpConnect, backend.ErrPermissionDenied, err)
	}
	if len(auth) == 0 {
		return backend.NewError(backend.OpConnect, backend.ErrPermissionDenied,
			errors.New("no usable SSH authentication method"))
	}

	cfg := &ssh.ClientConfig{
		User:            c.opts.User,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         constants.ConnectTimeout,
	}

	addr := fmt.Sprintf("%s:%d", c.opts.Host, c.opts.Port)
	sshClient, err := ssh.Dial("tcp", addr, cfg)
	if err != nil {
		return classify(backend.OpConnect, err)
	}
	client, err := sftp.NewClient(sshClient)
	if err != nil {
		_ = sshClient.Close()
		return classify(backend.OpConnect, err)
	}

	c.ssh = sshClient
	c.client = client
	if c.cwd == "" {
		c.cwd = "/"
	}
	return nil
}

// authMethods returns authentication methods in priority order: an
// explicitly configured key, then the SSH agent, then the default key
// files, then the password.
func (c *Commander) authMethods() ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if len(c.opts.PrivateKeyPEM) > 0 {
		signer, err := ssh.ParsePrivateKey(c.opts.PrivateKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("configured private key: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	} else if c.opts.PrivateKeyPath != "" {
		data, err := os.ReadFile(c.opts.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read private key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(data)
		if err != nil {
			return nil, fmt.Errorf("parse private key %s: %w", c.opts.PrivateKeyPath, err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}

	if agentAuth := tryAgent(); agentAuth != nil {
		methods = append(methods, agentAuth)
	}
	methods = append(methods, defaultKeys()...)

	if c.opts.Password != "" {
		methods = append(methods, ssh.Password(c.opts.Password))
	}
	return methods, nil
}

func tryAgent() ssh.AuthMethod {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil
	}
	conn, err := net.Dial("unix", socket)
	if err != nil {
		return nil
	}
	return ssh.PublicKeysCallback(agent.NewClient(conn).Signers)
}

func defaultKeys() []ssh.AuthMethod {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	var methods []ssh.AuthMethod
	for _, name := range []string{"id_ed25519", "id_rsa", "id_ecdsa"} {
		data, err := os.ReadFile(filepath.Join(home, ".ssh", name))
		if err != nil {
			continue
		}
		signer, err := ssh.ParsePrivateKey(data)
		if err != nil {
			// Encrypted or malformed key; skip it.
			continue
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	return methods
}

func (c *Commander) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var first error
	if c.client != nil {
		first = c.client.Close()
		c.client = nil
	}
	if c.ssh != nil {
		if err := c.ssh.Close(); err != nil && first == nil {
			first = err
		}
		c.ssh = nil
	}
	return classify(backend.OpDisconnect, first)
}

func (c *Commander) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		_ = c.client.Close()
		c.client = nil
	}
	if c.ssh != nil {
		_ = c.ssh.Close()
		c.ssh = nil
	}
	return c.connectLocked()
}

func (c *Commander) List(ctx context.Context) (*backend.Listing, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return nil, err
	}

	infos, err := c.client.ReadDir(c.cwd)
	if err != nil {
		return nil, classify(backend.OpList, err)
	}

	listing := &backend.Listing{Path: c.cwd}
	for _, info := range infos {
		listing.Entries = append(listing.Entries, backend.Entry{
			Name:        info.Name(),
			Path:        path.Join(c.cwd, info.Name()),
			IsDir:       info.IsDir(),
			Size:        info.Size(),
			ModTime:     info.ModTime(),
			Permissions: info.Mode().String(),
		})
	}
	return listing, nil
}

func (c *Commander) ChangeDir(ctx context.Context, dir string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return err
	}

	info, err := c.client.Stat(dir)
	if err != nil {
		return classify(backend.OpChangeDir, err)
	}
	if !info.IsDir() {
		return backend.NewError(backend.OpChangeDir, backend.ErrNotFound,
			fmt.Errorf("%s is not a directory", dir))
	}
	c.cwd = dir
	return nil
}

func (c *Commander) MakeDir(ctx context.Context, dir string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return err
	}
	return classify(backend.OpMakeDir, c.client.MkdirAll(dir))
}

func (c *Commander) DeleteFile(ctx context.Context, p string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return err
	}
	return classify(backend.OpDeleteFile, c.client.Remove(p))
}

func (c *Commander) DeleteDir(ctx context.Context, p string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return err
	}
	return classify(backend.OpDeleteDir, c.client.RemoveAll(p))
}

func (c *Commander) Rename(ctx context.Context, from, to string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return err
	}
	return classify(backend.OpRename, c.client.Rename(from, to))
}

func (c *Commander) Upload(ctx context.Context, localPath, remotePath string, progress backend.ProgressFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return err
	}

	src, err := os.Open(localPath)
	if err != nil {
		return backend.Classify(backend.OpUpload, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return backend.Classify(backend.OpUpload, err)
	}

	dst, err := c.client.Create(remotePath)
	if err != nil {
		return classify(backend.OpUpload, err)
	}
	defer dst.Close()

	w := backend.NewCountingWriter(dst, info.Size(), progress)
	if _, err := io.Copy(w, src); err != nil {
		return classify(backend.OpUpload, err)
	}
	return nil
}

func (c *Commander) Download(ctx context.Context, remotePath, localPath string, progress backend.ProgressFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return err
	}

	src, err := c.client.Open(remotePath)
	if err != nil {
		return classify(backend.OpDownload, err)
	}
	defer src.Close()

	var total int64
	if info, err := src.Stat(); err == nil {
		total = info.Size()
	}

	dst, err := os.Create(localPath)
	if err != nil {
		return backend.Classify(backend.OpDownload, err)
	}
	defer dst.Close()

	w := backend.NewCountingWriter(dst, total, progress)
	if _, err := io.Copy(w, src); err != nil {
		return classify(backend.OpDownload, err)
	}
	return nil
}

// UploadFolder mirrors localDir under remoteDir, directories first.
func (c *Commander) UploadFolder(ctx context.Context, localDir, remoteDir string, progress backend.ProgressFunc) error {
	var total, done int64
	err := filepath.Walk(localDir, func(p string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return backend.Classify(backend.OpUploadFolder, err)
	}

	return filepath.Walk(localDir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return backend.Classify(backend.OpUploadFolder, err)
		}
		if ctx.Err() != nil {
			return backend.Classify(backend.OpUploadFolder, ctx.Err())
		}
		rel, err := filepath.Rel(localDir, p)
		if err != nil {
			return err
		}
		target := path.Join(remoteDir, filepath.ToSlash(rel))
		if info.IsDir() {
			return c.MakeDir(ctx, target)
		}
		base := done
		err = c.Upload(ctx, p, target, func(transferred, _ int64) {
			if progress != nil {
				progress(base+transferred, total)
			}
		})
		if err != nil {
			return err
		}
		done += info.Size()
		return nil
	})
}

// DownloadFolder mirrors remoteDir under localDir.
func (c *Commander) DownloadFolder(ctx context.Context, remoteDir, localDir string, progress backend.ProgressFunc) error {
	if err := os.MkdirAll(localDir, 0o755); err != nil {
		return backend.Classify(backend.OpDownloadFolder, err)
	}

	c.mu.Lock()
	if err := c.ready(); err != nil {
		c.mu.Unlock()
		return err
	}
	infos, err := c.client.ReadDir(remoteDir)
	c.mu.Unlock()
	if err != nil {
		return classify(backend.OpDownloadFolder, err)
	}

	for _, info := range infos {
		if ctx.Err() != nil {
			return backend.Classify(backend.OpDownloadFolder, ctx.Err())
		}
		remote := path.Join(remoteDir, info.Name())
		local := filepath.Join(localDir, info.Name())
		if info.IsDir() {
			if err := c.DownloadFolder(ctx, remote, local, progress); err != nil {
				return err
			}
			continue
		}
		if err := c.Download(ctx, remote, local, progress); err != nil {
			return err
		}
	}
	return nil
}

// KeepAlive stats the current directory; a dead SSH transport fails fast.
func (c *Commander) KeepAlive(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return err
	}
	_, err := c.client.Stat(c.cwd)
	return classify(backend.OpKeepAlive, err)
}

func (c *Commander) CheckConnection(ctx context.Context) bool {
	return c.KeepAlive(ctx) == nil
}

func (c *Commander) ready() error {
	if c.client == nil {
		return backend.NewError(backend.OpCheck, backend.ErrConnectionLost,
			errors.New("not connected"))
	}
	return nil
}

// classify maps SFTP status errors onto error kinds. pkg/sftp surfaces
// os.ErrNotExist/ErrPermission through errors.Is, which the generic
// classifier already understands; connection teardown shows up as
// ssh.ExitMissingError or io.EOF.
func classify(op backend.Operation, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) || errors.Is(err, sftp.ErrSSHFxConnectionLost) {
		return backend.NewError(op, backend.ErrConnectionLost, err)
	}
	if errors.Is(err, sftp.ErrSSHFxNoSuchFile) {
		return backend.NewError(op, backend.ErrNotFound, err)
	}
	if errors.Is(err, sftp.ErrSSHFxPermissionDenied) {
		return backend.NewError(op, backend.ErrPermissionDenied, err)
	}
	return backend.Classify(op, err)
}

var _ backend.LegacyCommander = (*Commander)(nil)
