package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults_Require_Secret(t *testing.T) {
	req := require.New(t)

	// No file, no env: everything defaults except the auth secret, which
	// has no safe default on purpose.
	_, err := LoadConfig("", nil)
	req.Error(err)
	req.Contains(err.Error(), "Secret")
}

func TestLoadConfig_From_File(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	req.NoError(os.WriteFile(path, []byte(`
http:
  addr: ":9999"
auth:
  secret: "0123456789abcdef0123456789abcdef"
log:
  level: debug
`), 0o600))

	cfg, err := LoadConfig(path, nil)
	req.NoError(err)
	req.Equal(":9999", cfg.HTTP.Addr)
	req.Equal("debug", cfg.Log.Level)

	// Untouched sections keep their defaults.
	req.Equal(1024, cfg.Hub.MailboxSize)
	req.Equal(4096, cfg.Guard.CacheSize)
}

func TestLoadConfig_Env_Override(t *testing.T) {
	req := require.New(t)
	t.Setenv("MSG_AUTH_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("MSG_HTTP_ADDR", ":7777")

	cfg, err := LoadConfig("", nil)
	req.NoError(err)
	req.Equal(":7777", cfg.HTTP.Addr)
}

func TestLoadConfig_Flags_Win(t *testing.T) {
	req := require.New(t)
	t.Setenv("MSG_AUTH_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("MSG_HTTP_ADDR", ":7777")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("http.addr", ":6666", "")
	req.NoError(fs.Set("http.addr", ":6666"))

	cfg, err := LoadConfig("", fs)
	req.NoError(err)
	req.Equal(":6666", cfg.HTTP.Addr)
}

func TestLoadConfig_Rejects_Short_Secret(t *testing.T) {
	req := require.New(t)
	t.Setenv("MSG_AUTH_SECRET", "too-short")

	_, err := LoadConfig("", nil)
	req.Error(err)
}

func TestLoadConfig_Rejects_Unknown_Log_Level(t *testing.T) {
	req := require.New(t)
	t.Setenv("MSG_AUTH_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("MSG_LOG_LEVEL", "verbose")

	_, err := LoadConfig("", nil)
	req.Error(err)
}
