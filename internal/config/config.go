package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Rcon     RconConfig     `yaml:"rcon"`
	Profile  ProfileConfig  `yaml:"profile"`
	Steam    SteamConfig    `yaml:"steam"`
	Logging  LoggingConfig  `yaml:"logging"`
	NATS     NATSConfig     `yaml:"nats"`
}

// AuthConfig holds authentication settings
type AuthConfig struct {
	JWTSecret     string        `yaml:"jwt_secret"`
	TokenDuration time.Duration `yaml:"token_duration"`
	Users         []User        `yaml:"users"`
}

// User is an API account; PasswordHash is a bcrypt hash (see `arkwatch hash-password`)
type User struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
	IsAdmin      bool   `yaml:"admin"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	HTTPPort   int    `yaml:"http_port"`
	StaticDir  string `yaml:"static_dir"`
}

// DatabaseConfig holds SQLite settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// RconConfig describes the game server's remote console and session cadence
type RconConfig struct {
	Host                string        `yaml:"host"`
	Port                int           `yaml:"port"`
	Password            string        `yaml:"password"`
	DialTimeout         time.Duration `yaml:"dial_timeout"`
	RetryDelay          time.Duration `yaml:"retry_delay"`
	PlayerListInterval  time.Duration `yaml:"player_list_interval"`
	ChatInterval        time.Duration `yaml:"chat_interval"`
	DisablePlayerPoller bool          `yaml:"disable_player_poller"`
	DisableChatPoller   bool          `yaml:"disable_chat_poller"`
}

// Address returns host:port
func (r RconConfig) Address() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// ProfileConfig points at the server's save data and access lists
type ProfileConfig struct {
	SaveDir           string        `yaml:"save_dir"`
	AdminListPath     string        `yaml:"admin_list"`
	WhitelistPath     string        `yaml:"whitelist"`
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
}

// SteamConfig enables platform profile lookups
type SteamConfig struct {
	APIKey   string        `yaml:"api_key"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// LoggingConfig holds the session log directory; empty means discard
type LoggingConfig struct {
	Dir string `yaml:"dir"`
}

// NATSConfig enables publishing session events to NATS; empty URL disables it
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills zero values with their defaults
func (cfg *Config) ApplyDefaults() {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = "127.0.0.1"
	}
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 8080
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "/var/lib/arkwatch/arkwatch.db"
	}
	if cfg.Auth.TokenDuration == 0 {
		cfg.Auth.TokenDuration = 24 * time.Hour
	}

	// RCON defaults
	if cfg.Rcon.Host == "" {
		cfg.Rcon.Host = "127.0.0.1"
	}
	if cfg.Rcon.Port == 0 {
		cfg.Rcon.Port = 32330
	}
	if cfg.Rcon.DialTimeout == 0 {
		cfg.Rcon.DialTimeout = 5 * time.Second
	}
	if cfg.Rcon.RetryDelay == 0 {
		cfg.Rcon.RetryDelay = time.Second
	}
	if cfg.Rcon.PlayerListInterval == 0 {
		cfg.Rcon.PlayerListInterval = 5 * time.Second
	}
	if cfg.Rcon.ChatInterval == 0 {
		cfg.Rcon.ChatInterval = time.Second
	}

	if cfg.Profile.ReconcileInterval == 0 {
		cfg.Profile.ReconcileInterval = time.Minute
	}
	if cfg.Steam.CacheTTL == 0 {
		cfg.Steam.CacheTTL = 60 * time.Second
	}
	if cfg.NATS.SubjectPrefix == "" {
		cfg.NATS.SubjectPrefix = "arkwatch"
	}
}

// Validate checks the settings the RCON session cannot run without
func (cfg *Config) Validate() error {
	var errs []error
	if cfg.Rcon.Host == "" {
		errs = append(errs, errors.New("rcon.host is required"))
	}
	if cfg.Rcon.Port <= 0 || cfg.Rcon.Port > 65535 {
		errs = append(errs, fmt.Errorf("rcon.port %d out of range", cfg.Rcon.Port))
	}
	if cfg.Rcon.Password == "" {
		errs = append(errs, errors.New("rcon.password is required"))
	}
	for _, u := range cfg.Auth.Users {
		if u.Username == "" || u.PasswordHash == "" {
			errs = append(errs, errors.New("auth.users entries need username and password_hash"))
			break
		}
	}
	return errors.Join(errs...)
}

// FindUser returns the configured user with the given name
func (cfg *Config) FindUser(username string) (User, bool) {
	for _, u := range cfg.Auth.Users {
		if u.Username == username {
			return u, true
		}
	}
	return User{}, false
}
