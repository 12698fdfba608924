package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

const DefaultPath = "music-librarian.toml"

type Library struct {
	Path   string `toml:"path"`
	Format string `toml:"format"` // "itunes", "csv" or empty to use the file extension
}

type Cache struct {
	Path          string `toml:"path"`
	Backend       string `toml:"backend"` // "json" or "sqlite"
	RememberSkips bool   `toml:"remember_skips"`
}

type Fetch struct {
	IntervalMillis int `toml:"interval_ms"`
	ResultLimit    int `toml:"result_limit"`
	MaxInFlight    int `toml:"max_in_flight"`
	Retries        int `toml:"retries"`
}

type Resolve struct {
	MaxOptions  int    `toml:"max_options"`
	Interactive string `toml:"interactive"` // "auto", "always" or "never"
}

type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type Spotify struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

type Config struct {
	Library Library `toml:"library"`
	Cache   Cache   `toml:"cache"`
	Fetch   Fetch   `toml:"fetch"`
	Resolve Resolve `toml:"resolve"`
	Logging Logging `toml:"logging"`
	Spotify Spotify `toml:"spotify"`
}

func Default() Config {
	return Config{
		Library: Library{Path: "data/Library.xml"},
		Cache:   Cache{Path: "data/cache.json", Backend: "json"},
		Fetch: Fetch{
			IntervalMillis: 650,
			ResultLimit:    25,
			Retries:        2,
		},
		Resolve: Resolve{MaxOptions: 5, Interactive: "auto"},
		Logging: Logging{Level: "info", Format: "console"},
	}
}

// Load builds the configuration from defaults, the TOML file at path (if it
// exists), a .env file in the working directory and the environment, in that
// order. An empty path means DefaultPath.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SPOTIFY_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("MUSIC_LIBRARIAN_CACHE"); v != "" {
		c.Cache.Path = v
	}
	if v := os.Getenv("MUSIC_LIBRARIAN_LIBRARY"); v != "" {
		c.Library.Path = v
	}
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Cache.Path) == "" {
		errs = append(errs, errors.New("cache.path is required"))
	}
	switch c.Cache.Backend {
	case "json", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("cache.backend: unsupported value %q", c.Cache.Backend))
	}
	switch c.Library.Format {
	case "", "itunes", "csv":
	default:
		errs = append(errs, fmt.Errorf("library.format: unsupported value %q", c.Library.Format))
	}
	if c.Fetch.IntervalMillis <= 0 {
		errs = append(errs, errors.New("fetch.interval_ms must be positive"))
	}
	if c.Fetch.ResultLimit <= 0 || c.Fetch.ResultLimit > 50 {
		errs = append(errs, errors.New("fetch.result_limit must be between 1 and 50"))
	}
	if c.Fetch.MaxInFlight < 0 {
		errs = append(errs, errors.New("fetch.max_in_flight cannot be negative"))
	}
	if c.Fetch.Retries < 0 {
		errs = append(errs, errors.New("fetch.retries cannot be negative"))
	}
	if c.Resolve.MaxOptions <= 0 {
		errs = append(errs, errors.New("resolve.max_options must be positive"))
	}
	switch c.Resolve.Interactive {
	case "auto", "always", "never":
	default:
		errs = append(errs, fmt.Errorf("resolve.interactive: unsupported value %q", c.Resolve.Interactive))
	}
	return errors.Join(errs...)
}

// RequireSpotify fails fast when search credentials are missing.
func (c Config) RequireSpotify() error {
	if c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "" {
		return errors.New("SPOTIFY_ID and SPOTIFY_SECRET must be set in environment or [spotify] config")
	}
	return nil
}

func (c Config) FetchInterval() time.Duration {
	return time.Duration(c.Fetch.IntervalMillis) * time.Millisecond
}
