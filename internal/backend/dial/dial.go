// Package dial constructs protocol adapters from connection params. It is
// the single place that knows which concrete commander serves which backend
// kind; everything above it works against the commander interfaces.
package dial

import (
	"fmt"

	"github.com/Azure/go-ntlmssp"
	"github.com/rs/zerolog"

	"github.com/halyard-dev/halyard/internal/backend"
	"github.com/halyard-dev/halyard/internal/backend/azurex"
	"github.com/halyard-dev/halyard/internal/backend/ftp"
	"github.com/halyard-dev/halyard/internal/backend/oauthdrive"
	"github.com/halyard-dev/halyard/internal/backend/s3x"
	"github.com/halyard-dev/halyard/internal/backend/sftpx"
	"github.com/halyard-dev/halyard/internal/backend/webdavx"
	"github.com/halyard-dev/halyard/internal/config"
	"github.com/halyard-dev/halyard/internal/httpx"
)

// Dialer builds commanders for every supported backend kind. HTTP-based
// providers share the proxy settings; direct-socket protocols (FTP, SFTP)
// ignore them.
type Dialer struct {
	proxy config.ProxySettings
	log   zerolog.Logger
}

func New(proxy config.ProxySettings, log zerolog.Logger) *Dialer {
	return &Dialer{proxy: proxy, log: log}
}

// DialLegacy creates an unconnected legacy commander.
func (d *Dialer) DialLegacy(params backend.ConnectionParams) (backend.LegacyCommander, error) {
	switch params.Kind {
	case backend.KindLegacy:
		if params.FTP == nil {
			return nil, fmt.Errorf("ftp connection params missing")
		}
		return ftp.New(*params.FTP), nil
	case backend.KindSecureLegacy:
		if params.SFTP == nil {
			return nil, fmt.Errorf("sftp connection params missing")
		}
		return sftpx.New(*params.SFTP), nil
	}
	return nil, fmt.Errorf("kind %q is not a legacy backend", params.Kind)
}

// DialProvider creates an unconnected provider commander.
func (d *Dialer) DialProvider(params backend.ConnectionParams) (backend.ProviderCommander, error) {
	if params.Kind != backend.KindProvider {
		return nil, fmt.Errorf("kind %q is not a provider backend", params.Kind)
	}

	switch params.SubKind {
	case backend.SubKindS3:
		if params.S3 == nil {
			return nil, fmt.Errorf("s3 connection params missing")
		}
		client, err := httpx.NewTransferClient(d.proxy)
		if err != nil {
			return nil, err
		}
		return s3x.New(*params.S3, client), nil

	case backend.SubKindAzureBlob:
		if params.Azure == nil {
			return nil, fmt.Errorf("azure connection params missing")
		}
		client, err := httpx.NewTransferClient(d.proxy)
		if err != nil {
			return nil, err
		}
		return azurex.New(*params.Azure, client), nil

	case backend.SubKindWebDAV:
		if params.WebDAV == nil {
			return nil, fmt.Errorf("webdav connection params missing")
		}
		client, err := httpx.NewTransferClient(d.proxy)
		if err != nil {
			return nil, err
		}
		transport := client.Transport
		if params.WebDAV.NTLM {
			// Server-side NTLM, distinct from any NTLM proxy the base
			// transport already negotiates.
			transport = ntlmssp.Negotiator{RoundTripper: transport}
		}
		return webdavx.New(*params.WebDAV, transport), nil

	case backend.SubKindOAuthDrive:
		if params.OAuthDrive == nil {
			return nil, fmt.Errorf("oauth drive connection params missing")
		}
		client, err := httpx.NewTransferClient(d.proxy)
		if err != nil {
			return nil, err
		}
		return oauthdrive.New(*params.OAuthDrive, client, d.log), nil
	}

	return nil, fmt.Errorf("unknown provider sub-kind %q", params.SubKind)
}

var _ backend.Dialer = (*Dialer)(nil)
