package config

import (
	"fmt"
	"os"

	"gopkg.in/ini.v1"

	"github.com/halyard-dev/halyard/internal/overwrite"
)

// Settings are the user preferences persisted between runs.
//
// INI format:
//
//	[halyard]
//	overwrite_policy = ask
//	show_hidden_files = false
//
//	[proxy]
//	mode = no-proxy
//	host =
//	port = 0
//	user =
//	no_proxy =
type Settings struct {
	// OverwritePolicy is the persisted conflict policy consulted before
	// any interactive prompt.
	OverwritePolicy string `ini:"overwrite_policy"`

	// ShowHiddenFiles includes dotfiles in local listings.
	ShowHiddenFiles bool `ini:"show_hidden_files"`

	Proxy ProxySettings `ini:"-"`
}

// ProxySettings configures the outbound proxy for provider backends.
type ProxySettings struct {
	// Mode is one of "no-proxy", "system", "basic", "ntlm". Empty means
	// no proxy.
	Mode string `ini:"mode"`
	Host string `ini:"host"`
	Port int    `ini:"port"`
	User string `ini:"user"`
	// Password is deliberately not persisted; it is prompted for at
	// startup when the mode requires one.
	Password string `ini:"-"`
	// NoProxy is a comma-separated bypass list of hosts and CIDRs.
	NoProxy string `ini:"no_proxy"`
}

// DefaultSettings returns the settings used before anything is saved.
func DefaultSettings() *Settings {
	return &Settings{
		OverwritePolicy: string(overwrite.PolicyAsk),
		Proxy:           ProxySettings{Mode: "no-proxy"},
	}
}

// LoadSettings reads settings from path. A missing file yields defaults,
// not an error; a malformed file is an error.
func LoadSettings(path string) (*Settings, error) {
	s := DefaultSettings()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return s, nil
	}

	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if err := f.Section("halyard").MapTo(s); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}
	if err := f.Section("proxy").MapTo(&s.Proxy); err != nil {
		return nil, fmt.Errorf("failed to parse proxy settings: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Save writes the settings to path with owner-only permissions.
func (s *Settings) Save(path string) error {
	if err := s.Validate(); err != nil {
		return err
	}

	f := ini.Empty()
	if err := f.Section("halyard").ReflectFrom(s); err != nil {
		return fmt.Errorf("failed to serialize settings: %w", err)
	}
	if err := f.Section("proxy").ReflectFrom(&s.Proxy); err != nil {
		return fmt.Errorf("failed to serialize proxy settings: %w", err)
	}

	if err := f.SaveTo(path); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return os.Chmod(path, 0o600)
}

// Validate checks field values against their known domains.
func (s *Settings) Validate() error {
	if _, err := overwrite.ParsePolicy(s.OverwritePolicy); err != nil {
		return err
	}
	switch s.Proxy.Mode {
	case "", "no-proxy", "system", "basic", "ntlm":
	default:
		return fmt.Errorf("unsupported proxy mode: %s", s.Proxy.Mode)
	}
	return nil
}

// Policy returns the parsed overwrite policy.
func (s *Settings) Policy() overwrite.Policy {
	p, err := overwrite.ParsePolicy(s.OverwritePolicy)
	if err != nil {
		return overwrite.PolicyAsk
	}
	return p
}
