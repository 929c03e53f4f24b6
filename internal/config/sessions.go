package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/halyard-dev/halyard/internal/backend"
)

// RememberedSession is the persisted metadata of a past session, enough to
// offer a one-step reconnect. Secrets are stripped before saving; the user
// re-enters them (or an OAuth refresh re-acquires them) on reconnect.
type RememberedSession struct {
	Name       string                   `json:"name"`
	Params     backend.ConnectionParams `json:"params"`
	RemotePath string                   `json:"remotePath"`
	LocalPath  string                   `json:"localPath"`
	LastUsed   time.Time                `json:"lastUsed"`
}

// LoadSessions reads remembered sessions. A missing file yields an empty
// list.
func LoadSessions(path string) ([]RememberedSession, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read sessions file: %w", err)
	}

	var sessions []RememberedSession
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("failed to parse sessions file: %w", err)
	}
	return sessions, nil
}

// SaveSessions writes remembered sessions with owner-only permissions.
func SaveSessions(path string, sessions []RememberedSession) error {
	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sessions: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write sessions file: %w", err)
	}
	return nil
}

// Remember upserts a session by name, moving it to the front, with its
// secrets stripped.
func Remember(sessions []RememberedSession, rs RememberedSession) []RememberedSession {
	rs.Params = stripSecrets(rs.Params)
	rs.LastUsed = time.Now()

	out := []RememberedSession{rs}
	for _, s := range sessions {
		if s.Name != rs.Name {
			out = append(out, s)
		}
	}
	return out
}

// Forget removes a remembered session by name.
func Forget(sessions []RememberedSession, name string) []RememberedSession {
	out := sessions[:0]
	for _, s := range sessions {
		if s.Name != name {
			out = append(out, s)
		}
	}
	return out
}

// stripSecrets clears every credential field from a deep copy of the
// params. Refresh tokens for OAuth drives are kept: they are the mechanism
// that makes a remembered session reconnectable without a browser round
// trip, and the 0600 file permissions bound their exposure.
func stripSecrets(p backend.ConnectionParams) backend.ConnectionParams {
	out := p.Clone()
	if out.FTP != nil {
		out.FTP.Password = ""
	}
	if out.SFTP != nil {
		out.SFTP.Password = ""
		out.SFTP.PrivateKeyPEM = nil
	}
	if out.S3 != nil {
		out.S3.SecretAccessKey = ""
		out.S3.SessionToken = ""
	}
	if out.Azure != nil {
		out.Azure.AccountKey = ""
	}
	if out.WebDAV != nil {
		out.WebDAV.Password = ""
	}
	if out.OAuthDrive != nil {
		out.OAuthDrive.ClientSecret = ""
		out.OAuthDrive.AccessToken = ""
	}
	return out
}
