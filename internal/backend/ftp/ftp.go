// Package ftp adapts the plain FTP protocol to the legacy command surface.
package ftp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/jlaffaye/ftp"

	"github.com/halyard-dev/halyard/internal/backend"
	"github.com/halyard-dev/halyard/internal/constants"
)

// Commander speaks FTP through the legacy command surface. The server keeps
// the working directory; List always lists it.
type Commander struct {
	opts backend.FTPOptions

	mu   sync.Mutex
	conn *ftp.ServerConn
}

// New creates an unconnected commander.
func New(opts backend.FTPOptions) *Commander {
	if opts.Port == 0 {
		opts.Port = 21
	}
	return &Commander{opts: opts}
}

func (c *Commander) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *Commander) connectLocked(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", c.opts.Host, c.opts.Port)
	dialOpts := []ftp.DialOption{
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(constants.ConnectTimeout),
	}
	if c.opts.ExplicitTLS {
		dialOpts = append(dialOpts, ftp.DialWithExplicitTLS(&tls.Config{
			ServerName: c.opts.Host,
			MinVersion: tls.VersionTLS12,
		}))
	}

	conn, err := ftp.Dial(addr, dialOpts...)
	if err != nil {
		return classify(backend.OpConnect, err)
	}
	if err := conn.Login(c.opts.User, c.opts.Password); err != nil {
		_ = conn.Quit()
		return classify(backend.OpConnect, err)
	}
	c.conn = conn
	return nil
}

func (c *Commander) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Quit()
	c.conn = nil
	return classify(backend.OpDisconnect, err)
}

func (c *Commander) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Quit() // best effort, the connection is likely dead
		c.conn = nil
	}
	return c.connectLocked(ctx)
}

func (c *Commander) List(ctx context.Context) (*backend.Listing, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return nil, err
	}

	cwd, err := c.conn.CurrentDir()
	if err != nil {
		return nil, classify(backend.OpList, err)
	}
	entries, err := c.conn.List("")
	if err != nil {
		return nil, classify(backend.OpList, err)
	}

	listing := &backend.Listing{Path: cwd}
	for _, e := range entries {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		listing.Entries = append(listing.Entries, backend.Entry{
			Name:    e.Name,
			Path:    path.Join(cwd, e.Name),
			IsDir:   e.Type == ftp.EntryTypeFolder,
			Size:    int64(e.Size),
			ModTime: e.Time,
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
	return classify(backend.OpChangeDir, c.conn.ChangeDir(dir))
}

func (c *Commander) MakeDir(ctx context.Context, dir string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return err
	}
	return classify(backend.OpMakeDir, c.conn.MakeDir(dir))
}

func (c *Commander) DeleteFile(ctx context.Context, p string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return err
	}
	return classify(backend.OpDeleteFile, c.conn.Delete(p))
}

func (c *Commander) DeleteDir(ctx context.Context, p string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return err
	}
	return classify(backend.OpDeleteDir, c.conn.RemoveDirRecur(p))
}

func (c *Commander) Rename(ctx context.Context, from, to string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return err
	}
	return classify(backend.OpRename, c.conn.Rename(from, to))
}

func (c *Commander) Upload(ctx context.Context, localPath, remotePath string, progress backend.ProgressFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return backend.Classify(backend.OpUpload, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return backend.Classify(backend.OpUpload, err)
	}

	reader := backend.NewCountingReader(f, info.Size(), progress)
	return classify(backend.OpUpload, c.conn.StorFrom(remotePath, reader, 0))
}

func (c *Commander) Download(ctx context.Context, remotePath, localPath string, progress backend.ProgressFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return err
	}

	size, _ := c.conn.FileSize(remotePath) // advisory, 0 when unsupported

	resp, err := c.conn.Retr(remotePath)
	if err != nil {
		return classify(backend.OpDownload, err)
	}
	defer resp.Close()

	f, err := os.Create(localPath)
	if err != nil {
		return backend.Classify(backend.OpDownload, err)
	}
	defer f.Close()

	w := backend.NewCountingWriter(f, size, progress)
	if _, err := io.Copy(w, resp); err != nil {
		return classify(backend.OpDownload, err)
	}
	return nil
}

// UploadFolder walks localDir and mirrors its tree under remoteDir.
// Progress reports bytes across the whole folder.
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
			// Already-existing directories are fine.
			_ = c.MakeDir(ctx, target)
			return nil
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
	entries, err := c.conn.List(remoteDir)
	c.mu.Unlock()
	if err != nil {
		return classify(backend.OpDownloadFolder, err)
	}

	for _, e := range entries {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		if ctx.Err() != nil {
			return backend.Classify(backend.OpDownloadFolder, ctx.Err())
		}
		remote := path.Join(remoteDir, e.Name)
		local := filepath.Join(localDir, e.Name)
		if e.Type == ftp.EntryTypeFolder {
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

func (c *Commander) KeepAlive(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return err
	}
	return classify(backend.OpKeepAlive, c.conn.NoOp())
}

func (c *Commander) CheckConnection(ctx context.Context) bool {
	return c.KeepAlive(ctx) == nil
}

// ready reports a classified error when no connection is open. Must hold mu.
func (c *Commander) ready() error {
	if c.conn == nil {
		return backend.NewError(backend.OpCheck, backend.ErrConnectionLost,
			errors.New("not connected"))
	}
	return nil
}

// classify maps FTP reply codes onto error kinds before falling back to the
// generic classifier. 550 covers both "no such file" and "permission
// denied" on most servers; the distinction is not recoverable from the
// code alone, so it maps to not-found, the more common meaning.
func classify(op backend.Operation, err error) error {
	if err == nil {
		return nil
	}
	var proto *textproto.Error
	if errors.As(err, &proto) {
		switch proto.Code {
		case ftp.StatusFileUnavailable:
			return backend.NewError(op, backend.ErrNotFound, err)
		case ftp.StatusNotLoggedIn:
			return backend.NewError(op, backend.ErrPermissionDenied, err)
		case ftp.StatusNotAvailable, ftp.StatusTransfertAborted:
			return backend.NewError(op, backend.ErrConnectionLost, err)
		}
	}
	return backend.Classify(op, err)
}

var _ backend.LegacyCommander = (*Commander)(nil)
