package backend

import (
	"testing"
	"time"
)

func TestConnectionParamsCloneIsDeep(t *testing.T) {
	orig := ConnectionParams{
		Kind:    KindProvider,
		SubKind: SubKindOAuthDrive,
		OAuthDrive: &OAuthDriveOptions{
			BaseURL:      "https://drive.example.com",
			RefreshToken: "tok",
			Scopes:       []string{"files.read", "files.write"},
		},
	}
	clone := orig.Clone()

	clone.OAuthDrive.RefreshToken = "changed"
	clone.OAuthDrive.Scopes[0] = "changed"

	if orig.OAuthDrive.RefreshToken != "tok" {
		t.Error("clone shares OAuthDrive struct with original")
	}
	if orig.OAuthDrive.Scopes[0] != "files.read" {
		t.Error("clone shares Scopes slice with original")
	}
}

func TestConnectionParamsCloneSFTPKey(t *testing.T) {
	orig := ConnectionParams{
		Kind: KindSecureLegacy,
		SFTP: &SFTPOptions{Host: "example.com", PrivateKeyPEM: []byte("KEY")},
	}
	clone := orig.Clone()
	clone.SFTP.PrivateKeyPEM[0] = 'X'
	if orig.SFTP.PrivateKeyPEM[0] != 'K' {
		t.Error("clone shares private key bytes with original")
	}
}

func TestListingFind(t *testing.T) {
	l := &Listing{
		Path: "/data",
		Entries: []Entry{
			{Name: "a.txt", Size: 1, ModTime: time.Now()},
			{Name: "sub", IsDir: true},
		},
	}
	if _, ok := l.Find("a.txt"); !ok {
		t.Error("expected to find a.txt")
	}
	if _, ok := l.Find("missing"); ok {
		t.Error("did not expect to find missing")
	}
	var nilListing *Listing
	if _, ok := nilListing.Find("a"); ok {
		t.Error("nil listing should not find anything")
	}
}
