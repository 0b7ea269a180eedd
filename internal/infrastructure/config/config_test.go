package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/tock-booker/internal/domain/reservation"
	"github.com/example/tock-booker/internal/infrastructure/crypto"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "https://www.exploretock.com", cfg.BaseURL)
	assert.True(t, cfg.Headless)
	assert.Equal(t, 30*time.Second, cfg.StepTimeout)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryInitialInterval)
	assert.Empty(t, cfg.MasterKey)
}

func TestFromEnv_Overrides(t *testing.T) {
	key := strings.Repeat("k", 32)
	t.Setenv("DATABASE_URL", "postgres://plain")
	t.Setenv("TOCK_STEP_TIMEOUT", "5s")
	t.Setenv("TOCK_MAX_ATTEMPTS", "7")
	t.Setenv("TOCK_HEADLESS", "false")
	t.Setenv("TOCK_BASE_URL", "http://localhost:9999/")
	t.Setenv("TOCK_MASTER_KEY", base64.StdEncoding.EncodeToString([]byte(key)))

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "postgres://plain", cfg.DatabaseURL)
	assert.Equal(t, 5*time.Second, cfg.StepTimeout)
	assert.Equal(t, 7, cfg.MaxAttempts)
	assert.False(t, cfg.Headless)
	assert.Equal(t, "http://localhost:9999", cfg.BaseURL)
	assert.Equal(t, []byte(key), cfg.MasterKey)
}

func TestFromEnv_PrefixedWinsOverPlain(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://plain")
	t.Setenv("TOCK_DATABASE_URL", "postgres://prefixed")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "postgres://prefixed", cfg.DatabaseURL)
}

func TestFromEnv_Invalid(t *testing.T) {
	cases := map[string][2]string{
		"bad duration":   {"TOCK_STEP_TIMEOUT", "soon"},
		"zero attempts":  {"TOCK_MAX_ATTEMPTS", "0"},
		"negative guest": {"TOCK_GUEST_STEP_BUDGET", "-1"},
		"short key":      {"TOCK_MASTER_KEY", base64.StdEncoding.EncodeToString([]byte("short"))},
		"bad base url":   {"TOCK_BASE_URL", "exploretock.com"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}

func TestLoad_FileAndKeyPath(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "master.key")
	require.NoError(t, os.WriteFile(keyPath, []byte(base64.StdEncoding.EncodeToString([]byte(strings.Repeat("m", 32)))+"\n"), 0o600))

	file := filepath.Join(dir, "tockbook.yaml")
	require.NoError(t, os.WriteFile(file, []byte("watch_interval: 2m\nmaster_key: "+keyPath+"\n"), 0o600))

	cfg, err := Load(viper.New(), file)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, cfg.WatchInterval)
	assert.Len(t, cfg.MasterKey, 32)

	_, err = Load(viper.New(), filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

const targetYAML = `
offering: /fui-hui-hua/search
booking_page: /fui-hui-hua/search
party_size: 4
time_preferences: ["7:00 PM", "7:30 PM"]
excluded_days: ["March 3, 2025"]
patron:
  email: diner@example.com
  password: pw
watch:
  release_date: "2025-02-01"
  release_time: "10:00"
  timezone: America/Chicago
`

func TestParseTarget(t *testing.T) {
	tf, err := ParseTarget(strings.NewReader(targetYAML), nil)
	require.NoError(t, err)

	assert.Equal(t, "/fui-hui-hua/search", tf.Offering)
	assert.Equal(t, 4, tf.PartySize)
	assert.Equal(t, []string{"7:00 PM", "7:30 PM"}, tf.TimePreferences)
	assert.Equal(t, []string{"March 3, 2025"}, tf.ExcludedDays)
	assert.Equal(t, "diner@example.com", tf.Patron.Email)
	require.NotNil(t, tf.Watch)
	assert.Equal(t, "America/Chicago", tf.Watch.Timezone)
}

func TestParseTarget_EnvOverrides(t *testing.T) {
	t.Setenv("TOCK_PASSWORD", "from-env")
	t.Setenv("TOCK_CVV", "999")

	tf, err := ParseTarget(strings.NewReader(targetYAML), nil)
	require.NoError(t, err)
	assert.Equal(t, "from-env", tf.Patron.Password)
	assert.Equal(t, "999", tf.Patron.PaymentVerificationCode)
}

func TestParseTarget_Sealed(t *testing.T) {
	a, err := crypto.New([]byte(strings.Repeat("s", 32)))
	require.NoError(t, err)
	sealed, err := a.Seal("s3cret")
	require.NoError(t, err)
	doc := strings.Replace(targetYAML, "password: pw", "password: "+sealed, 1)

	tf, err := ParseTarget(strings.NewReader(doc), a)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", tf.Patron.Password)

	_, err = ParseTarget(strings.NewReader(doc), nil)
	assert.ErrorIs(t, err, reservation.ErrConfiguration)
}

func TestParseTarget_Invalid(t *testing.T) {
	cases := map[string]string{
		"unknown field":  targetYAML + "surprise: true\n",
		"zero party":     strings.Replace(targetYAML, "party_size: 4", "party_size: 0", 1),
		"no offering":    strings.Replace(targetYAML, "offering: /fui-hui-hua/search\n", "", 1),
		"no email":       strings.Replace(targetYAML, "email: diner@example.com", "email: \"\"", 1),
		"blank pref":     strings.Replace(targetYAML, `["7:00 PM", "7:30 PM"]`, `["7:00 PM", " "]`, 1),
		"malformed yaml": "offering: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTarget(strings.NewReader(doc), nil)
			assert.ErrorIs(t, err, reservation.ErrConfiguration)
		})
	}
}

func TestLoadTarget_MissingFile(t *testing.T) {
	_, err := LoadTarget(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.ErrorIs(t, err, reservation.ErrConfiguration)
}
