// Package config provides the configuration loader for datakit.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.pactly.app/datakit/internal/core/domain"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// FingerprintContacts names the only fingerprint source resources can
// declare today: a hash of the device contact-book snapshot.
const FingerprintContacts = "contacts"

// DefaultAPIBaseURL is the production backend.
const DefaultAPIBaseURL = "https://api.pactly.app"

// Config is the validated runtime configuration.
type Config struct {
	// APIBaseURL is the backend the fetchers talk to.
	APIBaseURL string
	// StorageDir is where cache entries are persisted.
	StorageDir string
	// ContactsSnapshot is the path of the exported contact book used for
	// fingerprinting. Empty disables the contacts fingerprint source.
	ContactsSnapshot string
	// Resources holds per-key overrides; keys not present fall back to the
	// built-in bands.
	Resources map[string]Resource
}

// Resource is the per-key cache policy.
type Resource struct {
	Thresholds  domain.Thresholds
	Fingerprint string
}

// Resource returns the policy for a key, falling back to the built-in
// thresholds when the key is not configured.
func (c *Config) Resource(key string) Resource {
	if r, ok := c.Resources[key]; ok {
		return r
	}
	return Resource{Thresholds: domain.DefaultThresholds(key)}
}

// Default returns the configuration used when no datakit.yaml exists.
func Default() *Config {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = ".datakit"
	} else {
		dir = filepath.Join(dir, "datakit")
	}
	return &Config{
		APIBaseURL: DefaultAPIBaseURL,
		StorageDir: dir,
		Resources:  map[string]Resource{},
	}
}

// file mirrors the datakit.yaml layout.
type file struct {
	Version   string                 `yaml:"version"`
	API       apiDTO                 `yaml:"api"`
	Storage   storageDTO             `yaml:"storage"`
	Contacts  contactsDTO            `yaml:"contacts"`
	Resources map[string]resourceDTO `yaml:"resources"`
}

type apiDTO struct {
	BaseURL string `yaml:"baseUrl"`
}

type storageDTO struct {
	Dir string `yaml:"dir"`
}

type contactsDTO struct {
	Snapshot string `yaml:"snapshot"`
}

type resourceDTO struct {
	Fresh       string `yaml:"fresh"`
	Stale       string `yaml:"stale"`
	Expired     string `yaml:"expired"`
	Fingerprint string `yaml:"fingerprint"`
}

// Load reads a configuration file from the given path. A missing file is
// not an error; the defaults apply.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is provided by user
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return nil, zerr.Wrap(err, "failed to read config file")
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, zerr.Wrap(err, "failed to parse config file")
	}

	cfg := Default()
	if f.API.BaseURL != "" {
		cfg.APIBaseURL = f.API.BaseURL
	}
	if f.Storage.Dir != "" {
		cfg.StorageDir = f.Storage.Dir
	}
	cfg.ContactsSnapshot = f.Contacts.Snapshot

	for key, dto := range f.Resources {
		res, err := dto.toResource(key)
		if err != nil {
			return nil, err
		}
		cfg.Resources[key] = res
	}
	return cfg, nil
}

func (dto resourceDTO) toResource(key string) (Resource, error) {
	th := domain.DefaultThresholds(key)
	var err error
	if th.Fresh, err = band(dto.Fresh, th.Fresh); err != nil {
		return Resource{}, zerr.With(zerr.Wrap(err, "invalid fresh band"), "resource", key)
	}
	if th.Stale, err = band(dto.Stale, th.Stale); err != nil {
		return Resource{}, zerr.With(zerr.Wrap(err, "invalid stale band"), "resource", key)
	}
	if th.Expired, err = band(dto.Expired, th.Expired); err != nil {
		return Resource{}, zerr.With(zerr.Wrap(err, "invalid expired band"), "resource", key)
	}
	if err := th.Validate(); err != nil {
		return Resource{}, zerr.With(err, "resource", key)
	}

	switch dto.Fingerprint {
	case "", FingerprintContacts:
	default:
		return Resource{}, zerr.With(zerr.With(zerr.New("unknown fingerprint source"), "fingerprint", dto.Fingerprint), "resource", key)
	}

	return Resource{Thresholds: th, Fingerprint: dto.Fingerprint}, nil
}

// band parses a duration override, keeping the default when unset.
func band(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	return time.ParseDuration(s)
}
