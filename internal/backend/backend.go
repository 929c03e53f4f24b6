// Package backend defines the command surface shared by all remote storage
// backends. The orchestration layer (sessions, transfers, navigation sync)
// talks to backends exclusively through the interfaces and types in this
// package, so protocol details never leak upward.
//
// Two command families exist: the legacy family (connection-oriented file
// transfer protocols with an implicit working directory) and the provider
// family (stateless HTTP-style backends addressed by absolute path). The
// router in this package selects the family for a given backend kind.
package backend

import "time"

// Kind identifies the protocol family a connection speaks.
type Kind string

const (
	// KindLegacy is the plain legacy file-transfer protocol (FTP).
	KindLegacy Kind = "legacy"
	// KindSecureLegacy is the secure variant (SFTP over SSH).
	KindSecureLegacy Kind = "secure-legacy"
	// KindProvider is a generic provider backend; the concrete protocol
	// is carried by the SubKind.
	KindProvider Kind = "provider"
)

// SubKind identifies the concrete protocol of a generic provider backend.
type SubKind string

const (
	SubKindS3         SubKind = "s3"
	SubKindAzureBlob  SubKind = "azure-blob"
	SubKindWebDAV     SubKind = "webdav"
	SubKindOAuthDrive SubKind = "oauth-drive"
)

// ConnectionOriented reports whether the kind maintains a persistent
// connection that can silently die between operations. Stateless HTTP
// backends re-authenticate implicitly on the next request, so a failed
// keep-alive is not fatal for them.
func (k Kind) ConnectionOriented() bool {
	switch k {
	case KindLegacy, KindSecureLegacy:
		return true
	default:
		return false
	}
}

// FTPOptions holds connection parameters for plain FTP.
type FTPOptions struct {
	Host     string
	Port     int
	User     string
	Password string
	// ExplicitTLS upgrades the control connection with AUTH TLS.
	ExplicitTLS bool
}

// SFTPOptions holds connection parameters for SFTP.
type SFTPOptions struct {
	Host           string
	Port           int
	User           string
	Password       string
	PrivateKeyPath string
	// PrivateKeyPEM takes precedence over PrivateKeyPath when set.
	PrivateKeyPEM []byte
}

// S3Options holds connection parameters for S3-compatible object storage.
type S3Options struct {
	Endpoint        string // empty for AWS
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	// PathStyle forces path-style addressing (required by most
	// S3-compatible servers).
	PathStyle bool
}

// AzureOptions holds connection parameters for Azure Blob storage.
type AzureOptions struct {
	AccountName string
	AccountKey  string
	Container   string
	// ServiceURL overrides the default https://<account>.blob.core.windows.net.
	ServiceURL string
}

// WebDAVOptions holds connection parameters for WebDAV servers.
type WebDAVOptions struct {
	URL      string
	User     string
	Password string
	// NTLM enables NTLM negotiation on the transport (SharePoint-style
	// servers).
	NTLM bool
}

// OAuthDriveOptions holds connection parameters for OAuth-based cloud drives.
type OAuthDriveOptions struct {
	BaseURL      string
	AuthURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	RefreshToken string
	AccessToken  string
	Expiry       time.Time
	Scopes       []string
}

// ConnectionParams is the tagged union of per-kind connection options.
// Exactly one payload pointer is non-nil, matching Kind (and SubKind for
// provider backends). Sessions deep-copy params at creation so later edits
// to a shared draft never mutate a live connection.
type ConnectionParams struct {
	Kind    Kind
	SubKind SubKind // set only when Kind == KindProvider

	FTP        *FTPOptions
	SFTP       *SFTPOptions
	S3         *S3Options
	Azure      *AzureOptions
	WebDAV     *WebDAVOptions
	OAuthDrive *OAuthDriveOptions
}

// Clone returns a deep copy of the params.
func (p ConnectionParams) Clone() ConnectionParams {
	out := ConnectionParams{Kind: p.Kind, SubKind: p.SubKind}
	if p.FTP != nil {
		v := *p.FTP
		out.FTP = &v
	}
	if p.SFTP != nil {
		v := *p.SFTP
		if p.SFTP.PrivateKeyPEM != nil {
			v.PrivateKeyPEM = append([]byte(nil), p.SFTP.PrivateKeyPEM...)
		}
		out.SFTP = &v
	}
	if p.S3 != nil {
		v := *p.S3
		out.S3 = &v
	}
	if p.Azure != nil {
		v := *p.Azure
		out.Azure = &v
	}
	if p.WebDAV != nil {
		v := *p.WebDAV
		out.WebDAV = &v
	}
	if p.OAuthDrive != nil {
		v := *p.OAuthDrive
		if p.OAuthDrive.Scopes != nil {
			v.Scopes = append([]string(nil), p.OAuthDrive.Scopes...)
		}
		out.OAuthDrive = &v
	}
	return out
}

// Entry is one file or directory in a listing.
type Entry struct {
	Name        string
	Path        string
	IsDir       bool
	Size        int64
	ModTime     time.Time
	Permissions string // empty when the backend does not report permissions
}

// Listing is the result of a directory listing command.
type Listing struct {
	Path    string
	Entries []Entry
}

// Find returns the entry with the given name, if present.
func (l *Listing) Find(name string) (Entry, bool) {
	if l == nil {
		return Entry{}, false
	}
	for _, e := range l.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// ProgressFunc reports transfer progress as transferred byte count against
// the total. Total may be zero when the backend cannot determine the size
// up front.
type ProgressFunc func(transferred, total int64)
