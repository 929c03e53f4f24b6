// Package oauthdrive adapts OAuth-authenticated cloud drive APIs to the
// provider command surface. The drive API is a path-addressed JSON surface;
// token refresh happens transparently through the oauth2 token source.
package oauthdrive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/halyard-dev/halyard/internal/backend"
)

// retryLogger adapts the retry transport's leveled logging onto zerolog.
type retryLogger struct {
	log zerolog.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.log.Error().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.log.Warn().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {}

// Commander speaks a path-addressed drive API through the provider command
// surface.
type Commander struct {
	opts       backend.OAuthDriveOptions
	baseURL    string
	baseClient *nethttp.Client
	log        zerolog.Logger

	mu         sync.Mutex
	httpClient *nethttp.Client
}

// New creates an unconnected commander. baseClient may be nil; when set it
// carries proxy and transport tuning for the underlying requests.
func New(opts backend.OAuthDriveOptions, baseClient *nethttp.Client, log zerolog.Logger) *Commander {
	return &Commander{
		opts:       opts,
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		baseClient: baseClient,
		log:        log,
	}
}

// Connect builds the authenticated client and verifies the drive answers.
func (c *Commander) Connect(ctx context.Context) error {
	conf := &oauth2.Config{
		ClientID:     c.opts.ClientID,
		ClientSecret: c.opts.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  c.opts.AuthURL,
			TokenURL: c.opts.TokenURL,
		},
		Scopes: c.opts.Scopes,
	}
	token := &oauth2.Token{
		AccessToken:  c.opts.AccessToken,
		RefreshToken: c.opts.RefreshToken,
		Expiry:       c.opts.Expiry,
	}
	if token.AccessToken == "" && token.RefreshToken == "" {
		return backend.NewError(backend.OpConnect, backend.ErrAuthExpired,
			errors.New("no access or refresh token"))
	}

	retryClient := retryablehttp.NewClient()
	if c.baseClient != nil {
		retryClient.HTTPClient = c.baseClient
	}
	retryClient.RetryMax = 5
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 30 * time.Second
	retryClient.Logger = &retryLogger{log: c.log}

	// The oauth2 transport wraps the retrying client so a refreshed token
	// is applied on every attempt.
	authCtx := context.WithValue(context.Background(), oauth2.HTTPClient,
		retryClient.StandardClient())
	httpClient := oauth2.NewClient(authCtx, conf.TokenSource(authCtx, token))

	c.mu.Lock()
	c.httpClient = httpClient
	c.mu.Unlock()

	if _, err := c.List(ctx, "/"); err != nil {
		c.mu.Lock()
		c.httpClient = nil
		c.mu.Unlock()
		return backend.NewError(backend.OpConnect, errKind(err), err)
	}
	return nil
}

func (c *Commander) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.httpClient = nil
	return nil
}

// driveEntry is the wire shape of one listed item.
type driveEntry struct {
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	Dir      bool      `json:"dir"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

func (c *Commander) List(ctx context.Context, dir string) (*backend.Listing, error) {
	resp, err := c.doRequest(ctx, "GET", "/files?path="+url.QueryEscape(dir), nil)
	if err != nil {
		return nil, classify(backend.OpList, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, nethttp.StatusOK); err != nil {
		return nil, classifyStatus(backend.OpList, resp.StatusCode, err)
	}

	var result struct {
		Entries []driveEntry `json:"entries"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, backend.NewError(backend.OpList, backend.ErrUnknown,
			fmt.Errorf("decode listing: %w", err))
	}

	listing := &backend.Listing{Path: dir}
	for _, e := range result.Entries {
		listing.Entries = append(listing.Entries, backend.Entry{
			Name:    e.Name,
			Path:    e.Path,
			IsDir:   e.Dir,
			Size:    e.Size,
			ModTime: e.Modified,
		})
	}
	return listing, nil
}

func (c *Commander) MakeDir(ctx context.Context, dir string) error {
	body := map[string]string{"path": dir}
	resp, err := c.doRequest(ctx, "POST", "/folders", body)
	if err != nil {
		return classify(backend.OpMakeDir, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, nethttp.StatusCreated, nethttp.StatusOK); err != nil {
		return classifyStatus(backend.OpMakeDir, resp.StatusCode, err)
	}
	return nil
}

func (c *Commander) DeleteFile(ctx context.Context, p string) error {
	resp, err := c.doRequest(ctx, "DELETE", "/files?path="+url.QueryEscape(p), nil)
	if err != nil {
		return classify(backend.OpDeleteFile, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, nethttp.StatusNoContent, nethttp.StatusOK); err != nil {
		return classifyStatus(backend.OpDeleteFile, resp.StatusCode, err)
	}
	return nil
}

func (c *Commander) DeleteDir(ctx context.Context, dir string, recursive bool) error {
	q := "/folders?path=" + url.QueryEscape(dir)
	if recursive {
		q += "&recursive=true"
	}
	resp, err := c.doRequest(ctx, "DELETE", q, nil)
	if err != nil {
		return classify(backend.OpDeleteDir, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, nethttp.StatusNoContent, nethttp.StatusOK); err != nil {
		return classifyStatus(backend.OpDeleteDir, resp.StatusCode, err)
	}
	return nil
}

func (c *Commander) Rename(ctx context.Context, from, to string) error {
	body := map[string]string{"from": from, "to": to}
	resp, err := c.doRequest(ctx, "POST", "/move", body)
	if err != nil {
		return classify(backend.OpRename, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, nethttp.StatusOK, nethttp.StatusNoContent); err != nil {
		return classifyStatus(backend.OpRename, resp.StatusCode, err)
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

	u := c.baseURL + "/content?path=" + url.QueryEscape(remotePath)
	req, err := nethttp.NewRequestWithContext(ctx, "PUT", u,
		backend.NewCountingReader(f, info.Size(), progress))
	if err != nil {
		return backend.NewError(backend.OpUpload, backend.ErrUnknown, err)
	}
	req.ContentLength = info.Size()
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := client.Do(req)
	if err != nil {
		return classify(backend.OpUpload, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, nethttp.StatusCreated, nethttp.StatusOK); err != nil {
		return classifyStatus(backend.OpUpload, resp.StatusCode, err)
	}
	return nil
}

func (c *Commander) Download(ctx context.Context, remotePath, localPath string, progress backend.ProgressFunc) error {
	resp, err := c.doRequest(ctx, "GET", "/content?path="+url.QueryEscape(remotePath), nil)
	if err != nil {
		return classify(backend.OpDownload, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, nethttp.StatusOK); err != nil {
		return classifyStatus(backend.OpDownload, resp.StatusCode, err)
	}

	f, err := os.Create(localPath)
	if err != nil {
		return backend.Classify(backend.OpDownload, err)
	}
	defer f.Close()

	w := backend.NewCountingWriter(f, resp.ContentLength, progress)
	if _, err := io.Copy(w, resp.Body); err != nil {
		return classify(backend.OpDownload, err)
	}
	return nil
}

func (c *Commander) KeepAlive(ctx context.Context) error {
	resp, err := c.doRequest(ctx, "GET", "/ping", nil)
	if err != nil {
		return classify(backend.OpKeepAlive, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, nethttp.StatusOK, nethttp.StatusNoContent); err != nil {
		return classifyStatus(backend.OpKeepAlive, resp.StatusCode, err)
	}
	return nil
}

func (c *Commander) CheckConnection(ctx context.Context) bool {
	return c.KeepAlive(ctx) == nil
}

// Capabilities asks the drive which optional features it offers. Any probe
// failure reads as "nothing supported".
func (c *Commander) Capabilities(ctx context.Context) backend.Capabilities {
	resp, err := c.doRequest(ctx, "GET", "/capabilities", nil)
	if err != nil {
		return backend.Capabilities{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK {
		return backend.Capabilities{}
	}

	var caps struct {
		Versions    bool `json:"versions"`
		Thumbnails  bool `json:"thumbnails"`
		Permissions bool `json:"permissions"`
		Locking     bool `json:"locking"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&caps); err != nil {
		return backend.Capabilities{}
	}
	return backend.Capabilities{
		Versions:    caps.Versions,
		Thumbnails:  caps.Thumbnails,
		Permissions: caps.Permissions,
		Locking:     caps.Locking,
	}
}

// doRequest performs an authenticated JSON request against the drive API.
func (c *Commander) doRequest(ctx context.Context, method, path string, body interface{}) (*nethttp.Response, error) {
	client, err := c.ready()
	if err != nil {
		return nil, err
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := nethttp.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	return client.Do(req)
}

func (c *Commander) ready() (*nethttp.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.httpClient == nil {
		return nil, backend.NewError(backend.OpCheck, backend.ErrConnectionLost,
			errors.New("not connected"))
	}
	return c.httpClient, nil
}

// checkStatus returns an error carrying the response body when the status
// is not one of the accepted values.
func checkStatus(resp *nethttp.Response, accepted ...int) error {
	for _, code := range accepted {
		if resp.StatusCode == code {
			return nil
		}
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

// classify handles transport-level failures; an expired refresh token
// surfaces from the oauth2 transport as a RetrieveError.
func classify(op backend.Operation, err error) error {
	if err == nil {
		return nil
	}
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return backend.NewError(op, backend.ErrAuthExpired, err)
	}
	return backend.Classify(op, err)
}

// classifyStatus maps HTTP status codes onto error kinds.
func classifyStatus(op backend.Operation, status int, err error) error {
	switch status {
	case nethttp.StatusNotFound:
		return backend.NewError(op, backend.ErrNotFound, err)
	case nethttp.StatusForbidden:
		return backend.NewError(op, backend.ErrPermissionDenied, err)
	case nethttp.StatusUnauthorized:
		return backend.NewError(op, backend.ErrAuthExpired, err)
	case nethttp.StatusConflict:
		return backend.NewError(op, backend.ErrAlreadyExists, err)
	}
	return backend.NewError(op, backend.ErrUnknown, err)
}

// errKind extracts the kind from an already classified error.
func errKind(err error) backend.ErrorKind {
	var be *backend.Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return backend.ErrUnknown
}

var _ backend.ProviderCommander = (*Commander)(nil)
