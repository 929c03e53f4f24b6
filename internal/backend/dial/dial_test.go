package dial

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/halyard-dev/halyard/internal/backend"
	"github.com/halyard-dev/halyard/internal/config"
)

func newDialer() *Dialer {
	return New(config.ProxySettings{Mode: "no-proxy"}, zerolog.Nop())
}

func TestDialLegacyKinds(t *testing.T) {
	d := newDialer()

	if _, err := d.DialLegacy(backend.ConnectionParams{
		Kind: backend.KindLegacy,
		FTP:  &backend.FTPOptions{Host: "ftp.example.com"},
	}); err != nil {
		t.Errorf("ftp dial failed: %v", err)
	}

	if _, err := d.DialLegacy(backend.ConnectionParams{
		Kind: backend.KindSecureLegacy,
		SFTP: &backend.SFTPOptions{Host: "sftp.example.com"},
	}); err != nil {
		t.Errorf("sftp dial failed: %v", err)
	}
}

func TestDialLegacyRejectsProviderKind(t *testing.T) {
	d := newDialer()
	if _, err := d.DialLegacy(backend.ConnectionParams{Kind: backend.KindProvider}); err == nil {
		t.Error("expected error dialing provider kind as legacy")
	}
}

func TestDialLegacyMissingOptions(t *testing.T) {
	d := newDialer()
	if _, err := d.DialLegacy(backend.ConnectionParams{Kind: backend.KindLegacy}); err == nil {
		t.Error("expected error when ftp options are nil")
	}
}

func TestDialProviderSubKinds(t *testing.T) {
	d := newDialer()

	cases := []backend.ConnectionParams{
		{Kind: backend.KindProvider, SubKind: backend.SubKindS3,
			S3: &backend.S3Options{Bucket: "b", Region: "us-east-1"}},
		{Kind: backend.KindProvider, SubKind: backend.SubKindAzureBlob,
			Azure: &backend.AzureOptions{AccountName: "acct", Container: "c"}},
		{Kind: backend.KindProvider, SubKind: backend.SubKindWebDAV,
			WebDAV: &backend.WebDAVOptions{URL: "https://dav.example.com"}},
		{Kind: backend.KindProvider, SubKind: backend.SubKindWebDAV,
			WebDAV: &backend.WebDAVOptions{URL: "https://dav.example.com", NTLM: true}},
		{Kind: backend.KindProvider, SubKind: backend.SubKindOAuthDrive,
			OAuthDrive: &backend.OAuthDriveOptions{BaseURL: "https://drive.example.com/api"}},
	}
	for _, params := range cases {
		if _, err := d.DialProvider(params); err != nil {
			t.Errorf("dial %s failed: %v", params.SubKind, err)
		}
	}
}

func TestDialProviderUnknownSubKind(t *testing.T) {
	d := newDialer()
	if _, err := d.DialProvider(backend.ConnectionParams{
		Kind:    backend.KindProvider,
		SubKind: backend.SubKind("gopher"),
	}); err == nil {
		t.Error("expected error for unknown sub-kind")
	}
}

func TestDialProviderMissingOptions(t *testing.T) {
	d := newDialer()
	if _, err := d.DialProvider(backend.ConnectionParams{
		Kind:    backend.KindProvider,
		SubKind: backend.SubKindS3,
	}); err == nil {
		t.Error("expected error when s3 options are nil")
	}
}
