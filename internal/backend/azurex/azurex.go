// Package azurex adapts Azure Blob storage to the provider command surface.
// Directories are simulated with name prefixes, same convention as the S3
// adapter.
package azurex

import (
	"context"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"

	"github.com/halyard-dev/halyard/internal/backend"
)

// Commander speaks the Azure Blob API through the provider command surface.
type Commander struct {
	opts       backend.AzureOptions
	httpClient *nethttp.Client

	mu     sync.Mutex
	client *azblob.Client
}

// New creates an unconnected commander. httpClient may be nil.
func New(opts backend.AzureOptions, httpClient *nethttp.Client) *Commander {
	return &Commander{opts: opts, httpClient: httpClient}
}

// Connect builds the blob client and verifies the container is reachable.
func (c *Commander) Connect(ctx context.Context) error {
	serviceURL := c.opts.ServiceURL
	if serviceURL == "" {
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net/", c.opts.AccountName)
	}

	clientOpts := &azblob.ClientOptions{}
	if c.httpClient != nil {
		clientOpts.ClientOptions = azcore.ClientOptions{
			Transport: c.httpClient,
		}
	}

	var client *azblob.Client
	var err error
	if c.opts.AccountKey != "" {
		var cred *azblob.SharedKeyCredential
		cred, err = azblob.NewSharedKeyCredential(c.opts.AccountName, c.opts.AccountKey)
		if err != nil {
			return backend.NewError(backend.OpConnect, backend.ErrPermissionDenied, err)
		}
		client, err = azblob.NewClientWithSharedKeyCredential(serviceURL, cred, clientOpts)
	} else {
		// SAS token embedded in the service URL.
		client, err = azblob.NewClientWithNoCredential(serviceURL, clientOpts)
	}
	if err != nil {
		return backend.NewError(backend.OpConnect, backend.ErrUnknown, err)
	}

	if _, err := client.ServiceClient().NewContainerClient(c.opts.Container).
		GetProperties(ctx, nil); err != nil {
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

// List lists one level of the pseudo-directory using a hierarchy query.
func (c *Commander) List(ctx context.Context, dir string) (*backend.Listing, error) {
	client, err := c.ready()
	if err != nil {
		return nil, err
	}

	prefix := prefixForDir(dir)
	listing := &backend.Listing{Path: dir}

	pager := client.ServiceClient().NewContainerClient(c.opts.Container).
		NewListBlobsHierarchyPager("/", &container.ListBlobsHierarchyOptions{
			Prefix: to.Ptr(prefix),
		})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, classify(backend.OpList, err)
		}
		for _, p := range page.Segment.BlobPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(deref(p.Name), prefix), "/")
			if name == "" {
				continue
			}
			listing.Entries = append(listing.Entries, backend.Entry{
				Name:  name,
				Path:  path.Join(dir, name),
				IsDir: true,
			})
		}
		for _, b := range page.Segment.BlobItems {
			name := strings.TrimPrefix(deref(b.Name), prefix)
			if name == "" || strings.Contains(name, "/") {
				continue
			}
			entry := backend.Entry{
				Name: name,
				Path: path.Join(dir, name),
			}
			if b.Properties != nil {
				if b.Properties.ContentLength != nil {
					entry.Size = *b.Properties.ContentLength
				}
				if b.Properties.LastModified != nil {
					entry.ModTime = *b.Properties.LastModified
				}
			}
			listing.Entries = append(listing.Entries, entry)
		}
	}
	return listing, nil
}

// MakeDir writes the zero-byte placeholder blob for the prefix.
func (c *Commander) MakeDir(ctx context.Context, dir string) error {
	client, err := c.ready()
	if err != nil {
		return err
	}
	_, err = client.UploadStream(ctx, c.opts.Container, prefixForDir(dir),
		strings.NewReader(""), nil)
	return classify(backend.OpMakeDir, err)
}

func (c *Commander) DeleteFile(ctx context.Context, p string) error {
	client, err := c.ready()
	if err != nil {
		return err
	}
	_, err = client.DeleteBlob(ctx, c.opts.Container, blobForFile(p), nil)
	return classify(backend.OpDeleteFile, err)
}

// DeleteDir removes a pseudo-directory. Without the recursive flag a
// non-empty directory is refused.
func (c *Commander) DeleteDir(ctx context.Context, dir string, recursive bool) error {
	client, err := c.ready()
	if err != nil {
		return err
	}
	prefix := prefixForDir(dir)

	if !recursive {
		listing, err := c.List(ctx, dir)
		if err != nil {
			return err
		}
		if len(listing.Entries) > 0 {
			return backend.NewError(backend.OpDeleteDir, backend.ErrUnknown,
				fmt.Errorf("directory %s is not empty", dir))
		}
		_, err = client.DeleteBlob(ctx, c.opts.Container, prefix, nil)
		return classify(backend.OpDeleteDir, err)
	}

	pager := client.NewListBlobsFlatPager(c.opts.Container, &azblob.ListBlobsFlatOptions{
		Prefix: to.Ptr(prefix),
	})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return classify(backend.OpDeleteDir, err)
		}
		for _, b := range page.Segment.BlobItems {
			if _, err := client.DeleteBlob(ctx, c.opts.Container, deref(b.Name), nil); err != nil {
				return classify(backend.OpDeleteDir, err)
			}
		}
	}
	return nil
}

// Rename copies the blob and deletes the source; blob storage has no
// rename.
func (c *Commander) Rename(ctx context.Context, from, to string) error {
	client, err := c.ready()
	if err != nil {
		return err
	}

	containerClient := client.ServiceClient().NewContainerClient(c.opts.Container)
	src := containerClient.NewBlobClient(blobForFile(from))
	dst := containerClient.NewBlobClient(blobForFile(to))

	if _, err := dst.CopyFromURL(ctx, src.URL(), nil); err != nil {
		return classify(backend.OpRename, err)
	}
	if _, err := src.Delete(ctx, nil); err != nil {
		return classify(backend.OpRename, err)
	}
	return nil
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

	_, err = client.UploadStream(ctx, c.opts.Container, blobForFile(remotePath),
		backend.NewCountingReader(f, info.Size(), progress),
		&azblob.UploadStreamOptions{})
	return classify(backend.OpUpload, err)
}

func (c *Commander) Download(ctx context.Context, remotePath, localPath string, progress backend.ProgressFunc) error {
	client, err := c.ready()
	if err != nil {
		return err
	}

	resp, err := client.DownloadStream(ctx, c.opts.Container, blobForFile(remotePath), nil)
	if err != nil {
		return classify(backend.OpDownload, err)
	}
	defer resp.Body.Close()

	var total int64
	if resp.ContentLength != nil {
		total = *resp.ContentLength
	}

	f, err := os.Create(localPath)
	if err != nil {
		return backend.Classify(backend.OpDownload, err)
	}
	defer f.Close()

	w := backend.NewCountingWriter(f, total, progress)
	if _, err := io.Copy(w, resp.Body); err != nil {
		return classify(backend.OpDownload, err)
	}
	return nil
}

// KeepAlive re-checks container reachability.
func (c *Commander) KeepAlive(ctx context.Context) error {
	client, err := c.ready()
	if err != nil {
		return err
	}
	_, err = client.ServiceClient().NewContainerClient(c.opts.Container).
		GetProperties(ctx, nil)
	return classify(backend.OpKeepAlive, err)
}

func (c *Commander) CheckConnection(ctx context.Context) bool {
	return c.KeepAlive(ctx) == nil
}

// Capabilities probes optional features; failures mean "unsupported".
func (c *Commander) Capabilities(ctx context.Context) backend.Capabilities {
	client, err := c.ready()
	if err != nil {
		return backend.Capabilities{}
	}
	caps := backend.Capabilities{}
	if props, err := client.ServiceClient().GetProperties(ctx, nil); err == nil {
		caps.Versions = props.DeleteRetentionPolicy != nil &&
			props.DeleteRetentionPolicy.Enabled != nil &&
			*props.DeleteRetentionPolicy.Enabled
	}
	return caps
}

func (c *Commander) ready() (*azblob.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil, backend.NewError(backend.OpCheck, backend.ErrConnectionLost,
			errors.New("not connected"))
	}
	return c.client, nil
}

func prefixForDir(dir string) string {
	p := strings.Trim(path.Clean(dir), "/")
	if p == "" || p == "." {
		return ""
	}
	return p + "/"
}

func blobForFile(p string) string {
	return strings.TrimPrefix(path.Clean(p), "/")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// classify maps Azure response errors onto error kinds.
func classify(op backend.Operation, err error) error {
	if err == nil {
		return nil
	}
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.ErrorCode {
		case "BlobNotFound", "ContainerNotFound", "ResourceNotFound":
			return backend.NewError(op, backend.ErrNotFound, err)
		case "AuthorizationFailure", "AuthorizationPermissionMismatch", "InsufficientAccountPermissions":
			return backend.NewError(op, backend.ErrPermissionDenied, err)
		case "AuthenticationFailed", "InvalidAuthenticationInfo":
			return backend.NewError(op, backend.ErrAuthExpired, err)
		case "BlobAlreadyExists", "ContainerAlreadyExists":
			return backend.NewError(op, backend.ErrAlreadyExists, err)
		}
		switch respErr.StatusCode {
		case nethttp.StatusNotFound:
			return backend.NewError(op, backend.ErrNotFound, err)
		case nethttp.StatusForbidden:
			return backend.NewError(op, backend.ErrPermissionDenied, err)
		case nethttp.StatusUnauthorized:
			return backend.NewError(op, backend.ErrAuthExpired, err)
		}
	}
	return backend.Classify(op, err)
}

var _ backend.ProviderCommander = (*Commander)(nil)
