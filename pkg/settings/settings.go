// Package settings manages persistent user settings for portctl.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/newtron-network/portmgr/pkg/auth"
)

// Settings holds persistent user preferences
type Settings struct {
	// RedisAddr is the switch Redis endpoint used when no SSH host is set
	RedisAddr string `json:"redis_addr,omitempty"`

	// SSHHost, SSHUser and SSHPort reach the switch Redis through a tunnel
	SSHHost string `json:"ssh_host,omitempty"`
	SSHUser string `json:"ssh_user,omitempty"`
	SSHPort int    `json:"ssh_port,omitempty"`

	// DefaultDevice is the ASIC device used when -d is not specified
	DefaultDevice uint32 `json:"default_device,omitempty"`

	// FieldErrorPolicy is "warn" or "strict"
	FieldErrorPolicy string `json:"field_error_policy,omitempty"`

	AuditLogPath    string `json:"audit_log_path,omitempty"`
	AuditMaxSizeMB  int    `json:"audit_max_size_mb,omitempty"`
	AuditMaxBackups int    `json:"audit_max_backups,omitempty"`

	// Access restricts writes by user. It is edited in the file directly;
	// unset means unrestricted.
	Access *auth.Policy `json:"access,omitempty"`
}

// Defaults applied by the getters when a setting is unset.
const (
	DefaultRedisAddr       = "127.0.0.1:6379"
	DefaultSSHPort         = 22
	DefaultFieldPolicy     = "warn"
	DefaultAuditMaxSizeMB  = 10
	DefaultAuditMaxBackups = 10
)

// DefaultSettingsPath returns the default path for the settings file
func DefaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "portmgr_settings.json"
	}
	return filepath.Join(home, ".portmgr", "settings.json")
}

// Load reads settings from the default location
func Load() (*Settings, error) {
	return LoadFrom(DefaultSettingsPath())
}

// LoadFrom reads settings from a specific path
func LoadFrom(path string) (*Settings, error) {
	s := &Settings{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return empty settings if file doesn't exist
			return s, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, s); err != nil {
		return nil, err
	}

	return s, nil
}

// Save writes settings to the default location
func (s *Settings) Save() error {
	return s.SaveTo(DefaultSettingsPath())
}

// SaveTo writes settings to a specific path
func (s *Settings) SaveTo(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// GetRedisAddr returns the Redis address (with fallback)
func (s *Settings) GetRedisAddr() string {
	if s.RedisAddr != "" {
		return s.RedisAddr
	}
	return DefaultRedisAddr
}

// GetSSHPort returns the SSH port (with fallback)
func (s *Settings) GetSSHPort() int {
	if s.SSHPort > 0 {
		return s.SSHPort
	}
	return DefaultSSHPort
}

// GetFieldErrorPolicy returns the field error policy name (with fallback)
func (s *Settings) GetFieldErrorPolicy() string {
	if s.FieldErrorPolicy != "" {
		return s.FieldErrorPolicy
	}
	return DefaultFieldPolicy
}

// GetAuditLogPath returns the audit log path, next to the settings file
// unless overridden.
func (s *Settings) GetAuditLogPath() string {
	if s.AuditLogPath != "" {
		return s.AuditLogPath
	}
	return filepath.Join(filepath.Dir(DefaultSettingsPath()), "audit.log")
}

// GetAuditMaxSize returns the rotation size in bytes.
func (s *Settings) GetAuditMaxSize() int64 {
	mb := s.AuditMaxSizeMB
	if mb <= 0 {
		mb = DefaultAuditMaxSizeMB
	}
	return int64(mb) * 1024 * 1024
}

// GetAuditMaxBackups returns how many rotated audit files are kept.
func (s *Settings) GetAuditMaxBackups() int {
	if s.AuditMaxBackups > 0 {
		return s.AuditMaxBackups
	}
	return DefaultAuditMaxBackups
}

// accessor binds a setting name to its string form.
type accessor struct {
	get func(s *Settings) string
	set func(s *Settings, v string) error
}

func intSetter(dst func(s *Settings) *int) func(s *Settings, v string) error {
	return func(s *Settings, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid number %q", v)
		}
		*dst(s) = n
		return nil
	}
}

func intGetter(src func(s *Settings) int) func(s *Settings) string {
	return func(s *Settings) string {
		if n := src(s); n != 0 {
			return strconv.Itoa(n)
		}
		return ""
	}
}

var accessors = map[string]accessor{
	"redis_addr": {
		get: func(s *Settings) string { return s.RedisAddr },
		set: func(s *Settings, v string) error { s.RedisAddr = v; return nil },
	},
	"ssh_host": {
		get: func(s *Settings) string { return s.SSHHost },
		set: func(s *Settings, v string) error { s.SSHHost = v; return nil },
	},
	"ssh_user": {
		get: func(s *Settings) string { return s.SSHUser },
		set: func(s *Settings, v string) error { s.SSHUser = v; return nil },
	},
	"ssh_port": {
		get: intGetter(func(s *Settings) int { return s.SSHPort }),
		set: intSetter(func(s *Settings) *int { return &s.SSHPort }),
	},
	"default_device": {
		get: func(s *Settings) string {
			if s.DefaultDevice == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(s.DefaultDevice), 10)
		},
		set: func(s *Settings, v string) error {
			n, err := strconv.ParseUint(v, 0, 32)
			if err != nil {
				return fmt.Errorf("invalid device %q", v)
			}
			s.DefaultDevice = uint32(n)
			return nil
		},
	},
	"field_error_policy": {
		get: func(s *Settings) string { return s.FieldErrorPolicy },
		set: func(s *Settings, v string) error {
			if v != "warn" && v != "strict" {
				return fmt.Errorf("field_error_policy must be warn or strict, got %q", v)
			}
			s.FieldErrorPolicy = v
			return nil
		},
	},
	"audit_log_path": {
		get: func(s *Settings) string { return s.AuditLogPath },
		set: func(s *Settings, v string) error { s.AuditLogPath = v; return nil },
	},
	"audit_max_size_mb": {
		get: intGetter(func(s *Settings) int { return s.AuditMaxSizeMB }),
		set: intSetter(func(s *Settings) *int { return &s.AuditMaxSizeMB }),
	},
	"audit_max_backups": {
		get: intGetter(func(s *Settings) int { return s.AuditMaxBackups }),
		set: intSetter(func(s *Settings) *int { return &s.AuditMaxBackups }),
	},
}

// Names lists the settable keys in sorted order.
func Names() []string {
	names := make([]string, 0, len(accessors))
	for k := range accessors {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Get returns a setting by name; unset settings read as "".
func (s *Settings) Get(name string) (string, error) {
	a, ok := accessors[name]
	if !ok {
		return "", fmt.Errorf("unknown setting: %s", name)
	}
	return a.get(s), nil
}

// Set assigns a setting by name, validating the value.
func (s *Settings) Set(name, value string) error {
	a, ok := accessors[name]
	if !ok {
		return fmt.Errorf("unknown setting: %s", name)
	}
	return a.set(s, value)
}

// Clear resets all settings to defaults
func (s *Settings) Clear() {
	*s = Settings{}
}
