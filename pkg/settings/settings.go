// Package settings manages persistent user settings for the papi-exec CLI.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/newtron-network/papibridge/pkg/util"
)

// Settings holds persistent connection defaults. Command-line flags
// override every field.
type Settings struct {
	// Host is the SSH target when --host is not specified
	Host string `json:"host,omitempty"`

	User string `json:"user,omitempty"`
	Port int    `json:"port,omitempty"`

	// KeyFile is a private key used before falling back to a password
	KeyFile string `json:"key_file,omitempty"`

	// Node is the container that runs VPP on the remote host
	Node string `json:"node,omitempty"`

	// Executor overrides the remote vpp-api-executor path
	Executor string `json:"executor,omitempty"`

	// APIDirs are passed to the remote executor as --api-dir
	APIDirs []string `json:"api_dirs,omitempty"`

	// Timeout is a Go duration string, e.g. "90s"
	Timeout string `json:"timeout,omitempty"`

	// AuditLog is the execution history file; "off" disables it
	AuditLog string `json:"audit_log,omitempty"`
}

// AuditOff disables the execution history when stored as AuditLog.
const AuditOff = "off"

// AuditLogPath returns the history file, defaulting to audit.log next to
// the settings file at settingsPath. It is empty when auditing is off.
func (s *Settings) AuditLogPath(settingsPath string) string {
	switch s.AuditLog {
	case AuditOff:
		return ""
	case "":
		return filepath.Join(filepath.Dir(settingsPath), "audit.log")
	}
	return s.AuditLog
}

// DefaultSettingsPath returns the default path for the settings file
func DefaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "papibridge_settings.json"
	}
	return filepath.Join(home, ".papibridge", "settings.json")
}

// Load reads settings from the default location
func Load() (*Settings, error) {
	return LoadFrom(DefaultSettingsPath())
}

// LoadFrom reads settings from a specific path. A missing file yields
// empty settings.
func LoadFrom(path string) (*Settings, error) {
	s := &Settings{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if _, err := s.TimeoutDuration(); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return s, nil
}

// Save writes settings to the default location
func (s *Settings) Save() error {
	return s.SaveTo(DefaultSettingsPath())
}

// SaveTo writes settings to a specific path. The file may hold a key path,
// so it is written owner-only.
func (s *Settings) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// TimeoutDuration parses Timeout. Zero means unset.
func (s *Settings) TimeoutDuration() (time.Duration, error) {
	if s.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.Timeout)
	if err != nil {
		return 0, fmt.Errorf("%w: timeout %q: %v", util.ErrInvalidConfig, s.Timeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: timeout %q is negative", util.ErrInvalidConfig, s.Timeout)
	}
	return d, nil
}

// setters maps the keys accepted by Set to the field they update.
var setters = map[string]func(s *Settings, v string) error{
	"host":      func(s *Settings, v string) error { s.Host = v; return nil },
	"user":      func(s *Settings, v string) error { s.User = v; return nil },
	"key_file":  func(s *Settings, v string) error { s.KeyFile = v; return nil },
	"node":      func(s *Settings, v string) error { s.Node = v; return nil },
	"executor":  func(s *Settings, v string) error { s.Executor = v; return nil },
	"audit_log": func(s *Settings, v string) error { s.AuditLog = v; return nil },
	"port": func(s *Settings, v string) error {
		if v == "" {
			s.Port = 0
			return nil
		}
		p, err := strconv.Atoi(v)
		if err != nil || p < 0 || p > 65535 {
			return fmt.Errorf("%w: port %q", util.ErrInvalidConfig, v)
		}
		s.Port = p
		return nil
	},
	"api_dirs": func(s *Settings, v string) error {
		s.APIDirs = util.SplitCommaSeparated(v)
		return nil
	},
	"timeout": func(s *Settings, v string) error {
		prev := s.Timeout
		s.Timeout = v
		if _, err := s.TimeoutDuration(); err != nil {
			s.Timeout = prev
			return err
		}
		return nil
	},
}

// Keys returns the settable keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set updates one field by key. An empty value clears it.
func (s *Settings) Set(key, value string) error {
	fn, ok := setters[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q (valid: %s)", util.ErrInvalidConfig, key, strings.Join(Keys(), ", "))
	}
	return fn(s, value)
}

// Get returns one field by key in the form Set accepts.
func (s *Settings) Get(key string) (string, error) {
	switch key {
	case "host":
		return s.Host, nil
	case "user":
		return s.User, nil
	case "key_file":
		return s.KeyFile, nil
	case "node":
		return s.Node, nil
	case "executor":
		return s.Executor, nil
	case "port":
		if s.Port == 0 {
			return "", nil
		}
		return strconv.Itoa(s.Port), nil
	case "api_dirs":
		return strings.Join(s.APIDirs, ","), nil
	case "timeout":
		return s.Timeout, nil
	case "audit_log":
		return s.AuditLog, nil
	}
	return "", fmt.Errorf("%w: unknown setting %q", util.ErrInvalidConfig, key)
}

// Clear resets all settings to defaults
func (s *Settings) Clear() {
	*s = Settings{}
}
