package pipeline

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/diwenne/clutch-shot-searcher/internal/types"
)

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	valid := Config{ExportDir: "exports"}
	require.NoError(t, valid.Validate())

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "missing export dir", mutate: func(c *Config) { c.ExportDir = "" }},
		{name: "negative workers", mutate: func(c *Config) { c.Workers = -1 }},
		{name: "negative timeout", mutate: func(c *Config) { c.ShotTimeout = -time.Second }},
		{name: "crf out of range", mutate: func(c *Config) { c.CRF = 52 }},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := valid
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestConfigHint(t *testing.T) {
	t.Parallel()

	require.Equal(t, types.DefaultOutputHint(), Config{}.hint())

	cfg := Config{VideoCodec: "libx265", Preset: "slow", CRF: 18}
	hint := cfg.hint()
	require.Equal(t, "libx265", hint.VideoCodec)
	require.Equal(t, "aac", hint.AudioCodec)
	require.Equal(t, "slow", hint.Preset)
	require.Equal(t, 18, hint.CRF)
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	require.Error(t, err)
}

func TestNew_OpensStore(t *testing.T) {
	t.Parallel()

	p, err := New(Config{
		ExportDir: filepath.Join(t.TempDir(), "exports"),
		CacheDir:  filepath.Join(t.TempDir(), "cache"),
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)
	defer p.Close()

	names, err := p.Store().List()
	require.NoError(t, err)
	require.Empty(t, names)
}
