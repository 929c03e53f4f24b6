// Package webdavx adapts WebDAV servers to the provider command surface.
package webdavx

import (
	"context"
	"errors"
	"io"
	nethttp "net/http"
	"os"
	"path"
	"sync"

	"github.com/studio-b12/gowebdav"

	"github.com/halyard-dev/halyard/internal/backend"
	"github.com/halyard-dev/halyard/internal/constants"
)

// Commander speaks WebDAV through the provider command surface. WebDAV has
// real collections, so unlike the object-storage adapters no directory
// simulation is needed.
type Commander struct {
	opts      backend.WebDAVOptions
	transport nethttp.RoundTripper

	mu     sync.Mutex
	client *gowebdav.Client
}

// New creates an unconnected commander. transport may be nil; when set it
// replaces the default transport (NTLM negotiation is wired this way).
func New(opts backend.WebDAVOptions, transport nethttp.RoundTripper) *Commander {
	return &Commander{opts: opts, transport: transport}
}

// Connect builds the client and verifies the server answers PROPFIND on
// the root collection.
func (c *Commander) Connect(ctx context.Context) error {
	client := gowebdav.NewClient(c.opts.URL, c.opts.User, c.opts.Password)
	client.SetTimeout(constants.ConnectTimeout)
	if c.transport != nil {
		client.SetTransport(c.transport)
	}
	if err := client.Connect(); err != nil {
		return classify(backend.OpConnect, err)
	}

	c.mu.Lock()
	c.client = client
	c.mu.Unlock()
	return nil
}

func (c *Commander) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.client = nil
	return nil
}

func (c *Commander) List(ctx context.Context, dir string) (*backend.Listing, error) {
	client, err := c.ready()
	if err != nil {
		return nil, err
	}

	infos, err := client.ReadDir(dir)
	if err != nil {
		return nil, classify(backend.OpList, err)
	}

	listing := &backend.Listing{Path: dir}
	for _, info := range infos {
		name := info.Name()
		if name == "." || name == ".." {
			continue
		}
		listing.Entries = append(listing.Entries, backend.Entry{
			Name:        name,
			Path:        path.Join(dir, name),
			IsDir:       info.IsDir(),
			Size:        info.Size(),
			ModTime:     info.ModTime(),
			Permissions: info.Mode().String(),
		})
	}
	return listing, nil
}

func (c *Commander) MakeDir(ctx context.Context, dir string) error {
	client, err := c.ready()
	if err != nil {
		return err
	}
	return classify(backend.OpMakeDir, client.MkdirAll(dir, 0o755))
}

// DeleteFile refuses collections so a stray path cannot wipe a subtree.
func (c *Commander) DeleteFile(ctx context.Context, p string) error {
	client, err := c.ready()
	if err != nil {
		return err
	}
	info, err := client.Stat(p)
	if err != nil {
		return classify(backend.OpDeleteFile, err)
	}
	if info.IsDir() {
		return backend.NewError(backend.OpDeleteFile, backend.ErrUnknown,
			errors.New("path is a directory"))
	}
	return classify(backend.OpDeleteFile, client.Remove(p))
}

func (c *Commander) DeleteDir(ctx context.Context, dir string, recursive bool) error {
	client, err := c.ready()
	if err != nil {
		return err
	}
	if !recursive {
		infos, err := client.ReadDir(dir)
		if err != nil {
			return classify(backend.OpDeleteDir, err)
		}
		if len(infos) > 0 {
			return backend.NewError(backend.OpDeleteDir, backend.ErrUnknown,
				errors.New("directory is not empty"))
		}
	}
	return classify(backend.OpDeleteDir, client.RemoveAll(dir))
}

func (c *Commander) Rename(ctx context.Context, from, to string) error {
	client, err := c.ready()
	if err != nil {
		return err
	}
	return classify(backend.OpRename, client.Rename(from, to, false))
}

func (c *Commander) Upload(ctx context.Context, localPath, remotePath string, progress backend.ProgressFunc) error {
	client, err := c.ready()
	if err != nil {
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

	r := backend.NewCountingReader(f, info.Size(), progress)
	return classify(backend.OpUpload, client.WriteStream(remotePath, r, 0o644))
}

func (c *Commander) Download(ctx context.Context, remotePath, localPath string, progress backend.ProgressFunc) error {
	client, err := c.ready()
	if err != nil {
		return err
	}

	var total int64
	if info, err := client.Stat(remotePath); err == nil {
		total = info.Size()
	}

	stream, err := client.ReadStream(remotePath)
	if err != nil {
		return classify(backend.OpDownload, err)
	}
	defer stream.Close()

	f, err := os.Create(localPath)
	if err != nil {
		return backend.Classify(backend.OpDownload, err)
	}
	defer f.Close()

	w := backend.NewCountingWriter(f, total, progress)
	if _, err := io.Copy(w, stream); err != nil {
		return classify(backend.OpDownload, err)
	}
	return nil
}

// KeepAlive issues a PROPFIND on the root collection.
func (c *Commander) KeepAlive(ctx context.Context) error {
	client, err := c.ready()
	if err != nil {
		return err
	}
	_, err = client.Stat("/")
	return classify(backend.OpKeepAlive, err)
}

func (c *Commander) CheckConnection(ctx context.Context) bool {
	return c.KeepAlive(ctx) == nil
}

// Capabilities reports WebDAV class 2 locking as available; the listing
// already carries mode strings, so permissions display is supported too.
func (c *Commander) Capabilities(ctx context.Context) backend.Capabilities {
	return backend.Capabilities{
		Permissions: true,
		Locking:     true,
	}
}

func (c *Commander) ready() (*gowebdav.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil, backend.NewError(backend.OpCheck, backend.ErrConnectionLost,
			errors.New("not connected"))
	}
	return c.client, nil
}

// classify maps WebDAV status errors onto error kinds.
func classify(op backend.Operation, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case gowebdav.IsErrNotFound(err):
		return backend.NewError(op, backend.ErrNotFound, err)
	case gowebdav.IsErrCode(err, nethttp.StatusForbidden):
		return backend.NewError(op, backend.ErrPermissionDenied, err)
	case gowebdav.IsErrCode(err, nethttp.StatusUnauthorized):
		return backend.NewError(op, backend.ErrAuthExpired, err)
	case gowebdav.IsErrCode(err, nethttp.StatusMethodNotAllowed),
		gowebdav.IsErrCode(err, nethttp.StatusConflict):
		// MKCOL on an existing collection answers 405; MOVE onto an
		// existing resource without Overwrite answers 412/409 depending
		// on the server.
		return backend.NewError(op, backend.ErrAlreadyExists, err)
	case gowebdav.IsErrCode(err, nethttp.StatusPreconditionFailed):
		return backend.NewError(op, backend.ErrAlreadyExists, err)
	}
	return backend.Classify(op, err)
}

var _ backend.ProviderCommander = (*Commander)(nil)
