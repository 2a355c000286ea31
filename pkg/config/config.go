package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"nbx/pkg/nbx"
)

// DefaultPath is where the CLI looks for credentials without -config.
const DefaultPath = "./config.toml"

// File mirrors config.toml. The same keys are accepted in YAML and JSON.
type File struct {
	ID            string `toml:"id" yaml:"id" json:"id"`
	Key           string `toml:"key" yaml:"key" json:"key"`
	Passphrase    string `toml:"passphrase" yaml:"passphrase" json:"passphrase"`
	Secret        string `toml:"secret" yaml:"secret" json:"secret"`
	TokenLifetime string `toml:"token_lifetime" yaml:"token_lifetime" json:"token_lifetime"`
	BaseURL       string `toml:"base_url" yaml:"base_url" json:"base_url"`
}

// Config is the loaded credential plus where to send requests.
type Config struct {
	Credential nbx.Credential
	BaseURL    string
}

// MissingFieldError lists every required key that was empty after env overrides.
type MissingFieldError struct {
	Path   string
	Fields []string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: missing %s", e.Path, strings.Join(e.Fields, ", "))
}

var envOverrides = []struct {
	name string
	dst  func(f *File) *string
}{
	{"NBX_ACCOUNT_ID", func(f *File) *string { return &f.ID }},
	{"NBX_API_KEY", func(f *File) *string { return &f.Key }},
	{"NBX_PASSPHRASE", func(f *File) *string { return &f.Passphrase }},
	{"NBX_SECRET", func(f *File) *string { return &f.Secret }},
	{"NBX_TOKEN_LIFETIME", func(f *File) *string { return &f.TokenLifetime }},
	{"NBX_BASE_URL", func(f *File) *string { return &f.BaseURL }},
}

// LoadDotEnv loads a .env file into the process environment if one exists.
// Variables already set are left alone.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Load reads the credential file at path, applies NBX_* environment
// overrides and checks that every required field is present.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", path, err)
	}

	f, err := Decode(path, data)
	if err != nil {
		return nil, err
	}
	applyEnv(f, os.LookupEnv)

	if err := f.validate(path); err != nil {
		return nil, err
	}

	cfg := &Config{
		Credential: nbx.Credential{
			AccountID:     f.ID,
			KeyID:         f.Key,
			Passphrase:    f.Passphrase,
			Secret:        f.Secret,
			TokenLifetime: f.TokenLifetime,
		},
		BaseURL: f.BaseURL,
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = nbx.APIEndpoint
	}
	return cfg, nil
}

// Decode picks the format from the file extension; anything unknown is read as TOML.
func Decode(path string, data []byte) (*File, error) {
	var f File
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &f)
	case ".json":
		err = json.Unmarshal(data, &f)
	default:
		_, err = toml.Decode(string(data), &f)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid config in %s: %w", path, err)
	}
	return &f, nil
}

func applyEnv(f *File, lookup func(string) (string, bool)) {
	for _, o := range envOverrides {
		if v, ok := lookup(o.name); ok {
			if v = strings.TrimSpace(v); v != "" {
				*o.dst(f) = v
			}
		}
	}
}

func (f *File) validate(path string) error {
	var missing []string
	for _, field := range []struct {
		key   string
		value string
	}{
		{"id", f.ID},
		{"key", f.Key},
		{"passphrase", f.Passphrase},
		{"secret", f.Secret},
		{"token_lifetime", f.TokenLifetime},
	} {
		if strings.TrimSpace(field.value) == "" {
			missing = append(missing, field.key)
		}
	}
	if len(missing) > 0 {
		return &MissingFieldError{Path: path, Fields: missing}
	}
	return nil
}
