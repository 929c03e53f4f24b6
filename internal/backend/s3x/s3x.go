// Package s3x adapts S3-compatible object storage to the provider command
// surface. Directories are simulated with key prefixes and zero-byte
// placeholder objects, the usual object-store convention.
package s3x

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

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/halyard-dev/halyard/internal/backend"
)

// Commander speaks the S3 API through the provider command surface.
// Thread-safe; the underlying SDK client pools connections.
type Commander struct {
	opts       backend.S3Options
	httpClient *nethttp.Client

	mu     sync.Mutex
	client *s3.Client
}

// New creates an unconnected commander. httpClient may be nil, in which
// case the SDK default is used.
func New(opts backend.S3Options, httpClient *nethttp.Client) *Commander {
	return &Commander{opts: opts, httpClient: httpClient}
}

// Connect builds the SDK client and verifies the bucket is reachable.
func (c *Commander) Connect(ctx context.Context) error {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(c.opts.Region),
	}
	if c.opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			awscreds.NewStaticCredentialsProvider(
				c.opts.AccessKeyID, c.opts.SecretAccessKey, c.opts.SessionToken)))
	}
	if c.httpClient != nil {
		loadOpts = append(loadOpts, awsconfig.WithHTTPClient(c.httpClient))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return backend.NewError(backend.OpConnect, backend.ErrUnknown, err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if c.opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.opts.Endpoint)
		}
		o.UsePathStyle = c.opts.PathStyle
	})

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(c.opts.Bucket),
	}); err != nil {
		return classify(backend.OpConnect, err)
	}

	c.mu.Lock()
	c.client = client
	c.mu.Unlock()
	return nil
}

// Disconnect drops the client. HTTP connections close when idle.
func (c *Commander) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.client = nil
	return nil
}

// List lists one level of the given pseudo-directory using a delimited
// prefix query.
func (c *Commander) List(ctx context.Context, dir string) (*backend.Listing, error) {
	client, err := c.ready()
	if err != nil {
		return nil, err
	}

	prefix := keyForDir(dir)
	listing := &backend.Listing{Path: dir}

	paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(c.opts.Bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classify(backend.OpList, err)
		}
		for _, cp := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), prefix), "/")
			if name == "" {
				continue
			}
			listing.Entries = append(listing.Entries, backend.Entry{
				Name:  name,
				Path:  path.Join(dir, name),
				IsDir: true,
			})
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if name == "" || strings.Contains(name, "/") {
				// The placeholder for the directory itself, or an object
				// below a sub-prefix already reported above.
				continue
			}
			listing.Entries = append(listing.Entries, backend.Entry{
				Name:    name,
				Path:    path.Join(dir, name),
				Size:    aws.ToInt64(obj.Size),
				ModTime: aws.ToTime(obj.LastModified),
			})
		}
	}
	return listing, nil
}

// MakeDir writes the zero-byte placeholder object for the prefix.
func (c *Commander) MakeDir(ctx context.Context, dir string) error {
	client, err := c.ready()
	if err != nil {
		return err
	}
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.opts.Bucket),
		Key:    aws.String(keyForDir(dir)),
	})
	return classify(backend.OpMakeDir, err)
}

func (c *Commander) DeleteFile(ctx context.Context, p string) error {
	client, err := c.ready()
	if err != nil {
		return err
	}
	_, err = client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.opts.Bucket),
		Key:    aws.String(keyForFile(p)),
	})
	return classify(backend.OpDeleteFile, err)
}

// DeleteDir removes a pseudo-directory. Without the recursive flag a
// non-empty directory is refused.
func (c *Commander) DeleteDir(ctx context.Context, dir string, recursive bool) error {
	client, err := c.ready()
	if err != nil {
		return err
	}
	prefix := keyForDir(dir)

	if !recursive {
		listing, err := c.List(ctx, dir)
		if err != nil {
			return err
		}
		if len(listing.Entries) > 0 {
			return backend.NewError(backend.OpDeleteDir, backend.ErrUnknown,
				fmt.Errorf("directory %s is not empty", dir))
		}
		_, err = client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(c.opts.Bucket),
			Key:    aws.String(prefix),
		})
		return classify(backend.OpDeleteDir, err)
	}

	paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.opts.Bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return classify(backend.OpDeleteDir, err)
		}
		if len(page.Contents) == 0 {
			continue
		}
		ids := make([]s3types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			ids = append(ids, s3types.ObjectIdentifier{Key: obj.Key})
		}
		if _, err := client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(c.opts.Bucket),
			Delete: &s3types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		}); err != nil {
			return classify(backend.OpDeleteDir, err)
		}
	}
	return nil
}

// Rename copies the object and deletes the source; S3 has no rename.
func (c *Commander) Rename(ctx context.Context, from, to string) error {
	client, err := c.ready()
	if err != nil {
		return err
	}
	src := keyForFile(from)
	_, err = client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(c.opts.Bucket),
		CopySource: aws.String(c.opts.Bucket + "/" + src),
		Key:        aws.String(keyForFile(to)),
	})
	if err != nil {
		return classify(backend.OpRename, err)
	}
	_, err = client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.opts.Bucket),
		Key:    aws.String(src),
	})
	return classify(backend.OpRename, err)
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

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.opts.Bucket),
		Key:           aws.String(keyForFile(remotePath)),
		Body:          backend.NewCountingReader(f, info.Size(), progress),
		ContentLength: aws.Int64(info.Size()),
	})
	return classify(backend.OpUpload, err)
}

func (c *Commander) Download(ctx context.Context, remotePath, localPath string, progress backend.ProgressFunc) error {
	client, err := c.ready()
	if err != nil {
		return err
	}

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.opts.Bucket),
		Key:    aws.String(keyForFile(remotePath)),
	})
	if err != nil {
		return classify(backend.OpDownload, err)
	}
	defer out.Body.Close()

	f, err := os.Create(localPath)
	if err != nil {
		return backend.Classify(backend.OpDownload, err)
	}
	defer f.Close()

	w := backend.NewCountingWriter(f, aws.ToInt64(out.ContentLength), progress)
	if _, err := io.Copy(w, out.Body); err != nil {
		return classify(backend.OpDownload, err)
	}
	return nil
}

// KeepAlive re-checks bucket reachability.
func (c *Commander) KeepAlive(ctx context.Context) error {
	client, err := c.ready()
	if err != nil {
		return err
	}
	_, err = client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(c.opts.Bucket),
	})
	return classify(backend.OpKeepAlive, err)
}

func (c *Commander) CheckConnection(ctx context.Context) bool {
	return c.KeepAlive(ctx) == nil
}

// Capabilities probes optional bucket features. Probe failures mean
// "unsupported", never an error.
func (c *Commander) Capabilities(ctx context.Context) backend.Capabilities {
	client, err := c.ready()
	if err != nil {
		return backend.Capabilities{}
	}

	caps := backend.Capabilities{}
	if out, err := client.GetBucketVersioning(ctx, &s3.GetBucketVersioningInput{
		Bucket: aws.String(c.opts.Bucket),
	}); err == nil {
		caps.Versions = out.Status == s3types.BucketVersioningStatusEnabled
	}
	if _, err := client.GetObjectLockConfiguration(ctx, &s3.GetObjectLockConfigurationInput{
		Bucket: aws.String(c.opts.Bucket),
	}); err == nil {
		caps.Locking = true
	}
	return caps
}

func (c *Commander) ready() (*s3.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil, backend.NewError(backend.OpCheck, backend.ErrConnectionLost,
			errors.New("not connected"))
	}
	return c.client, nil
}

// keyForDir converts a slash path to a prefix key with a trailing slash.
// The root maps to the empty prefix.
func keyForDir(dir string) string {
	key := strings.Trim(path.Clean(dir), "/")
	if key == "" || key == "." {
		return ""
	}
	return key + "/"
}

func keyForFile(p string) string {
	return strings.TrimPrefix(path.Clean(p), "/")
}

// classify maps S3 API error codes onto error kinds.
func classify(op backend.Operation, err error) error {
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return backend.NewError(op, backend.ErrNotFound, err)
		case "AccessDenied":
			return backend.NewError(op, backend.ErrPermissionDenied, err)
		case "ExpiredToken", "InvalidToken", "TokenRefreshRequired":
			return backend.NewError(op, backend.ErrAuthExpired, err)
		case "BucketAlreadyExists", "BucketAlreadyOwnedByYou":
			return backend.NewError(op, backend.ErrAlreadyExists, err)
		}
	}
	return backend.Classify(op, err)
}

var _ backend.ProviderCommander = (*Commander)(nil)
