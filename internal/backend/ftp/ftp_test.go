package ftp

import (
	"errors"
	"net/textproto"
	"testing"

	goftp "github.com/jlaffaye/ftp"

	"github.com/halyard-dev/halyard/internal/backend"
)

func TestClassifyReplyCodes(t *testing.T) {
	cases := []struct {
		code int
		want backend.ErrorKind
	}{
		{goftp.StatusFileUnavailable, backend.ErrNotFound},
		{goftp.StatusNotLoggedIn, backend.ErrPermissionDenied},
		{goftp.StatusNotAvailable, backend.ErrConnectionLost},
		{goftp.StatusTransfertAborted, backend.ErrConnectionLost},
	}
	for _, c := range cases {
		err := classify(backend.OpList, &textproto.Error{Code: c.code, Msg: "x"})
		var be *backend.Error
		if !errors.As(err, &be) {
			t.Fatalf("classify(%d) did not return a backend error: %v", c.code, err)
		}
		if be.Kind != c.want {
			t.Errorf("classify(%d) kind = %s, want %s", c.code, be.Kind, c.want)
		}
	}
}

func TestClassifyNilIsNil(t *testing.T) {
	if classify(backend.OpList, nil) != nil {
		t.Error("classify(nil) should be nil")
	}
}

func TestNewDefaultsPort(t *testing.T) {
	c := New(backend.FTPOptions{Host: "ftp.example.com"})
	if c.opts.Port != 21 {
		t.Errorf("default port = %d, want 21", c.opts.Port)
	}
}
