package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

const sampleConfig = `{
	// comments and trailing commas are fine
	discord: {
		token: "file-token",
		guild_id: "900000000000000001",
		channels: ["917773144620670976", "917773144620670977"],
		roles: ["931328237441806356"],
	},
	spotify: {client_id: "cid", client_secret: "secret"},
	database: {
		name: "btwu",
		user: "bot",
		table: "listening_parties",
	},
	update_limit: 5,
	timeouts: {metadata: "3s"},
}`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.json5")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DISCORD_TOKEN", "SPOTIFY_CLIENT_ID", "SPOTIFY_CLIENT_SECRET", "DB_DSN", "HTTP_ADDR", "LOG_LEVEL", "LOG_FORMAT", "LPBOT_CONFIG"} {
		t.Setenv(k, "")
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if cfg.Discord.Token != "file-token" || cfg.UpdateLimit != 5 {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Discord.CommandPrefix != "!lp" || cfg.HTTPAddr != ":8080" {
		t.Errorf("defaults lost: prefix=%q addr=%q", cfg.Discord.CommandPrefix, cfg.HTTPAddr)
	}
	if got := cfg.MetadataTimeout(); got != 3*time.Second {
		t.Errorf("MetadataTimeout() = %v, want 3s", got)
	}
	if got := cfg.StoreTimeout(); got != 5*time.Second {
		t.Errorf("StoreTimeout() = %v, want default 5s", got)
	}

	channels, roles, err := cfg.WatchIDs()
	if err != nil {
		t.Fatalf("WatchIDs() error: %v", err)
	}
	if len(channels) != 2 || channels[0] != snowflake.ID(917773144620670976) || channels[1] != snowflake.ID(917773144620670977) {
		t.Errorf("channels = %v", channels)
	}
	if len(roles) != 1 || roles[0] != snowflake.ID(931328237441806356) {
		t.Errorf("roles = %v", roles)
	}
	if got, want := cfg.Database.ConnString(), "postgres://bot@localhost:5432/btwu?sslmode=disable"; got != want {
		t.Errorf("ConnString() = %q, want %q", got, want)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISCORD_TOKEN", "env-token")
	t.Setenv("DB_DSN", "postgres://u:p@db:5432/x")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Discord.Token != "env-token" {
		t.Errorf("token = %q, want env value", cfg.Discord.Token)
	}
	if cfg.Database.ConnString() != "postgres://u:p@db:5432/x" {
		t.Errorf("ConnString() = %q, want DB_DSN", cfg.Database.ConnString())
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Log.Level)
	}
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json5")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Load(writeConfig(t, "{discord: ")); err == nil {
		t.Error("expected error for malformed file")
	}
}

func TestValidateNamesEveryMissingKey(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeConfig(t, "{}"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	err = cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, key := range []string{
		"discord.token", "discord.guild_id", "discord.channels", "discord.roles",
		"spotify.client_id", "spotify.client_secret", "database.name", "database.user", "database.table",
	} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q does not name %s", err, key)
		}
	}
}

func TestValidateMalformedValues(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"bad channel id", func(c *Config) { c.Discord.Channels = []string{"general"} }, "discord.channels[0]"},
		{"bad guild id", func(c *Config) { c.Discord.GuildID = "x" }, "discord.guild_id"},
		{"zero update limit", func(c *Config) { c.UpdateLimit = 0 }, "update_limit"},
		{"bad timeout", func(c *Config) { c.Timeouts.Store = "soon" }, "timeouts.store"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"short table fields", func(c *Config) {
			c.Database.TableFields = []string{"message_id", "created_at", "issuer_id"}
		}, "database.table_fields must list 6"},
		{"long album fields", func(c *Config) {
			c.Database.AlbumFields = []string{"artists", "album_name", "extra"}
		}, "database.album_fields must list 2"},
		{"short playlist fields", func(c *Config) {
			c.Database.PlaylistFields = []string{"artists", "playlist_name"}
		}, "database.playlist_fields must list 3"},
		{"key not first", func(c *Config) {
			c.Database.TableFields = []string{"created_at", "message_id", "issuer_id", "issuer_name", "issuer_nickname", "source_url"}
		}, "database.key_field"},
		{"issuer column elsewhere", func(c *Config) { c.Database.IssuerField = "issuer_name" }, "database.issuer_field"},
		{"artists missing from playlist", func(c *Config) {
			c.Database.PlaylistFields = []string{"performers", "playlist_owner", "playlist_name"}
		}, "database.playlist_fields[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := *cfg
			tt.mutate(&c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want error mentioning %s", err, tt.want)
			}
		})
	}
}

func TestPath(t *testing.T) {
	t.Setenv("LPBOT_CONFIG", "")
	if got := Path(""); got != DefaultPath {
		t.Errorf("Path() = %q, want %q", got, DefaultPath)
	}
	t.Setenv("LPBOT_CONFIG", "/etc/lpbot.json5")
	if got := Path(""); got != "/etc/lpbot.json5" {
		t.Errorf("Path() = %q, want env value", got)
	}
	if got := Path("flag.json5"); got != "flag.json5" {
		t.Errorf("Path(flag) = %q, want flag value", got)
	}
}
