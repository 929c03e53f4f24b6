package backend

import "context"

// LegacyCommander is the command set for connection-oriented backends
// (FTP, SFTP). A legacy connection keeps an implicit current working
// directory on the server; List always lists that directory.
type LegacyCommander interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	// Reconnect tears down whatever is left of the connection (best
	// effort) and establishes a fresh one.
	Reconnect(ctx context.Context) error

	// List lists the current working directory.
	List(ctx context.Context) (*Listing, error)
	ChangeDir(ctx context.Context, path string) error
	MakeDir(ctx context.Context, path string) error
	DeleteFile(ctx context.Context, path string) error
	DeleteDir(ctx context.Context, path string) error
	Rename(ctx context.Context, from, to string) error

	Upload(ctx context.Context, localPath, remotePath string, progress ProgressFunc) error
	Download(ctx context.Context, remotePath, localPath string, progress ProgressFunc) error
	UploadFolder(ctx context.Context, localDir, remoteDir string, progress ProgressFunc) error
	DownloadFolder(ctx context.Context, remoteDir, localDir string, progress ProgressFunc) error

	// KeepAlive issues a protocol no-op to detect a dead connection.
	KeepAlive(ctx context.Context) error
	// CheckConnection reports whether the connection is currently usable.
	CheckConnection(ctx context.Context) bool
}

// ProviderCommander is the command set for generic provider backends
// (object storage, WebDAV, OAuth drives). Providers are addressed by
// absolute path; there is no server-side working directory.
type ProviderCommander interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error

	List(ctx context.Context, path string) (*Listing, error)
	MakeDir(ctx context.Context, path string) error
	DeleteFile(ctx context.Context, path string) error
	DeleteDir(ctx context.Context, path string, recursive bool) error
	Rename(ctx context.Context, from, to string) error

	Upload(ctx context.Context, localPath, remotePath string, progress ProgressFunc) error
	Download(ctx context.Context, remotePath, localPath string, progress ProgressFunc) error

	KeepAlive(ctx context.Context) error
	CheckConnection(ctx context.Context) bool

	// Capabilities reports optional provider features. Probes are
	// consulted opportunistically; probe failures surface as
	// "unsupported", never as errors.
	Capabilities(ctx context.Context) Capabilities
}

// Capabilities describes optional provider features.
type Capabilities struct {
	Versions    bool
	Thumbnails  bool
	Permissions bool
	Locking     bool
}

// Dialer creates commanders from connection params. The session layer uses
// a Dialer so tests can substitute fakes for real protocol adapters.
type Dialer interface {
	// DialLegacy creates a legacy commander. The commander is returned
	// unconnected; callers invoke Connect themselves.
	DialLegacy(params ConnectionParams) (LegacyCommander, error)
	// DialProvider creates a provider commander, also unconnected.
	DialProvider(params ConnectionParams) (ProviderCommander, error)
}
