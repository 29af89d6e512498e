// Package config loads the bot's JSON5 configuration document and overlays
// secrets from the environment. Defaults cover everything except credentials,
// the guild and the watch lists; use Validate before connecting anywhere.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/titanous/json5"
)

// DefaultPath is used when neither --config nor LPBOT_CONFIG is given.
const DefaultPath = "config.json5"

type Config struct {
	Log         LogConfig      `json:"log"`
	Discord     DiscordConfig  `json:"discord"`
	Spotify     SpotifyConfig  `json:"spotify"`
	Database    DatabaseConfig `json:"database"`
	UpdateLimit int            `json:"update_limit"`
	Timeouts    TimeoutsConfig `json:"timeouts"`
	HTTPAddr    string         `json:"http_addr"`
}

type LogConfig struct {
	Level      string `json:"level"`
	Format     string `json:"format"`
	File       string `json:"file"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// DiscordConfig holds ids as strings; JSON numbers cannot carry a snowflake
// without losing precision.
type DiscordConfig struct {
	Token         string   `json:"token"`
	GuildID       string   `json:"guild_id"`
	CommandPrefix string   `json:"command_prefix"`
	Channels      []string `json:"channels"`
	Roles         []string `json:"roles"`
}

type SpotifyConfig struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// DatabaseConfig either carries a full DSN or the parts to build one.
type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Name     string `json:"name"`
	User     string `json:"user"`
	Password string `json:"password"`
	SSLMode  string `json:"sslmode"`

	Table          string   `json:"table"`
	KeyField       string   `json:"key_field"`
	IssuerField    string   `json:"issuer_field"`
	ArtistsField   string   `json:"artists_field"`
	TableFields    []string `json:"table_fields"`
	AlbumFields    []string `json:"album_fields"`
	PlaylistFields []string `json:"playlist_fields"`
}

type TimeoutsConfig struct {
	Metadata string `json:"metadata"`
	Store    string `json:"store"`
}

// Default returns a Config with every optional setting filled in.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			File:       "lpbot.log",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Discord: DiscordConfig{CommandPrefix: "!lp"},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			SSLMode:        "disable",
			KeyField:       "message_id",
			IssuerField:    "issuer_id",
			ArtistsField:   "artists",
			TableFields:    []string{"message_id", "created_at", "issuer_id", "issuer_name", "issuer_nickname", "source_url"},
			AlbumFields:    []string{"artists", "album_name"},
			PlaylistFields: []string{"artists", "playlist_owner", "playlist_name"},
		},
		UpdateLimit: 2,
		Timeouts:    TimeoutsConfig{Metadata: "10s", Store: "5s"},
		HTTPAddr:    ":8080",
	}
}

// Path picks the config file: the flag value, then LPBOT_CONFIG, then DefaultPath.
func Path(flag string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv("LPBOT_CONFIG"); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads the JSON5 document at path over the defaults, then overlays env
// vars. A missing or malformed file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envStr("DISCORD_TOKEN", &c.Discord.Token)
	envStr("SPOTIFY_CLIENT_ID", &c.Spotify.ClientID)
	envStr("SPOTIFY_CLIENT_SECRET", &c.Spotify.ClientSecret)
	envStr("DB_DSN", &c.Database.DSN)
	envStr("HTTP_ADDR", &c.HTTPAddr)
	envStr("LOG_LEVEL", &c.Log.Level)
	envStr("LOG_FORMAT", &c.Log.Format)
}

// Validate reports every missing required key and every malformed value in
// one error.
func (c *Config) Validate() error {
	var missing []string
	req := func(key, v string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, key)
		}
	}
	req("discord.token", c.Discord.Token)
	req("discord.guild_id", c.Discord.GuildID)
	if len(c.Discord.Channels) == 0 {
		missing = append(missing, "discord.channels")
	}
	if len(c.Discord.Roles) == 0 {
		missing = append(missing, "discord.roles")
	}
	req("spotify.client_id", c.Spotify.ClientID)
	req("spotify.client_secret", c.Spotify.ClientSecret)
	if c.Database.DSN == "" {
		req("database.name", c.Database.Name)
		req("database.user", c.Database.User)
	}
	req("database.table", c.Database.Table)
	req("database.key_field", c.Database.KeyField)
	req("database.issuer_field", c.Database.IssuerField)
	req("database.artists_field", c.Database.ArtistsField)
	if len(c.Database.TableFields) == 0 {
		missing = append(missing, "database.table_fields")
	}
	if len(c.Database.AlbumFields) == 0 {
		missing = append(missing, "database.album_fields")
	}
	if len(c.Database.PlaylistFields) == 0 {
		missing = append(missing, "database.playlist_fields")
	}

	var errs []error
	if len(missing) > 0 {
		errs = append(errs, fmt.Errorf("missing config keys: %s", strings.Join(missing, ", ")))
	}
	if c.Discord.GuildID != "" {
		if _, err := snowflake.Parse(c.Discord.GuildID); err != nil {
			errs = append(errs, fmt.Errorf("discord.guild_id: %w", err))
		}
	}
	if _, _, err := c.WatchIDs(); err != nil {
		errs = append(errs, err)
	}
	if c.UpdateLimit <= 0 {
		errs = append(errs, fmt.Errorf("update_limit must be positive, got %d", c.UpdateLimit))
	}
	if _, err := parseTimeout("timeouts.metadata", c.Timeouts.Metadata); err != nil {
		errs = append(errs, err)
	}
	if _, err := parseTimeout("timeouts.store", c.Timeouts.Store); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, c.Database.checkColumns()...)
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// Guild returns the configured guild id.
// Rows are written positionally: table_fields receive message id, creation
// time, issuer id, issuer name, issuer nickname and source url; album_fields
// receive artists and album name; playlist_fields receive artists, owner and
// playlist name.
const (
	tableFieldCount    = 6
	albumFieldCount    = 2
	playlistFieldCount = 3
)

// checkColumns reports column lists that cannot hold a record. Empty lists
// are already reported as missing.
func (d DatabaseConfig) checkColumns() []error {
	var errs []error
	arity := func(key string, fields []string, want int) bool {
		if len(fields) == 0 {
			return false
		}
		if len(fields) != want {
			errs = append(errs, fmt.Errorf("%s must list %d columns, got %d", key, want, len(fields)))
			return false
		}
		return true
	}
	at := func(key, want string, fields []string, i int, listKey string) {
		if want != "" && fields[i] != want {
			errs = append(errs, fmt.Errorf("%s %q must be %s[%d], found %q", key, want, listKey, i, fields[i]))
		}
	}
	if arity("database.table_fields", d.TableFields, tableFieldCount) {
		at("database.key_field", d.KeyField, d.TableFields, 0, "database.table_fields")
		at("database.issuer_field", d.IssuerField, d.TableFields, 2, "database.table_fields")
	}
	if arity("database.album_fields", d.AlbumFields, albumFieldCount) {
		at("database.artists_field", d.ArtistsField, d.AlbumFields, 0, "database.album_fields")
	}
	if arity("database.playlist_fields", d.PlaylistFields, playlistFieldCount) {
		at("database.artists_field", d.ArtistsField, d.PlaylistFields, 0, "database.playlist_fields")
	}
	return errs
}

func (c *Config) Guild() (snowflake.ID, error) {
	return snowflake.Parse(c.Discord.GuildID)
}

// WatchIDs parses the configured channel and role ids, keeping their order.
func (c *Config) WatchIDs() (channels, roles []snowflake.ID, err error) {
	parse := func(key string, raw []string) ([]snowflake.ID, error) {
		ids := make([]snowflake.ID, 0, len(raw))
		for i, s := range raw {
			id, err := snowflake.Parse(strings.TrimSpace(s))
			if err != nil {
				return nil, fmt.Errorf("%s[%d] %q: %w", key, i, s, err)
			}
			ids = append(ids, id)
		}
		return ids, nil
	}
	if channels, err = parse("discord.channels", c.Discord.Channels); err != nil {
		return nil, nil, err
	}
	if roles, err = parse("discord.roles", c.Discord.Roles); err != nil {
		return nil, nil, err
	}
	return channels, roles, nil
}

// MetadataTimeout bounds one metadata lookup.
func (c *Config) MetadataTimeout() time.Duration {
	d, _ := parseTimeout("timeouts.metadata", c.Timeouts.Metadata)
	return d
}

// StoreTimeout bounds one store call.
func (c *Config) StoreTimeout() time.Duration {
	d, _ := parseTimeout("timeouts.store", c.Timeouts.Store)
	return d
}

func parseTimeout(key, v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: negative duration %s", key, v)
	}
	return d, nil
}

// ConnString returns database.dsn when set, otherwise a postgres:// URL built from
// the individual fields.
func (d DatabaseConfig) ConnString() string {
	if d.DSN != "" {
		return d.DSN
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:   "/" + d.Name,
	}
	if d.Password != "" {
		u.User = url.UserPassword(d.User, d.Password)
	} else if d.User != "" {
		u.User = url.User(d.User)
	}
	if d.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {d.SSLMode}}.Encode()
	}
	return u.String()
}
