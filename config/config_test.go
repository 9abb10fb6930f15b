package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/gaohao-creator/turbojob/errors"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
scheduler:
  workers: 6
  distribution: round_robin
  parkTimeout: 2ms
  stopTimeout: 3s
render:
  maxFPS: 120
  capped: true
physics:
  rate: 30
input:
  rate: 500
  buffer: 64
log:
  verbosity: 4
metrics:
  addr: ":9090"
`), 0o600))

	got, err := Load(path)
	require.NoError(t, err)

	want := Default()
	want.Scheduler.Workers = 6
	want.Scheduler.Distribution = "round_robin"
	want.Scheduler.ParkTimeout = 2 * time.Millisecond
	want.Scheduler.StopTimeout = 3 * time.Second
	want.Render = RenderConfig{MaxFPS: 120, Capped: true}
	want.Physics.Rate = 30
	want.Input.Rate = 500
	want.Input.Buffer = 64
	want.Log.Verbosity = 4
	want.Metrics.Addr = ":9090"

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseMalformed(t *testing.T) {
	_, err := Parse([]byte("scheduler: [unterminated"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errs   int
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:   "negative workers",
			mutate: func(c *Config) { c.Scheduler.Workers = -1 },
			errs:   1,
		},
		{
			name:   "unknown distribution",
			mutate: func(c *Config) { c.Scheduler.Distribution = "fifo" },
			errs:   1,
		},
		{
			name: "bad loops",
			mutate: func(c *Config) {
				c.Render.MaxFPS = 0
				c.Physics.Rate = 0
				c.Physics.CatchUp = 0
				c.Input.Rate = -1
			},
			errs: 4,
		},
		{
			name: "everything",
			mutate: func(c *Config) {
				c.Scheduler.IdleSpins = -1
				c.Scheduler.ParkTimeout = -time.Second
				c.Scheduler.StopTimeout = -time.Second
				c.Input.Buffer = 0
				c.Log.Verbosity = -1
			},
			errs: 5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			if tt.errs == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			errs := multierr.Errors(err)
			assert.Len(t, errs, tt.errs)
			for _, e := range errs {
				assert.ErrorIs(t, e, errors.ErrorInvalidConfig)
			}
		})
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	_, err := Parse([]byte("physics:\n  rate: 0\n"))
	assert.ErrorIs(t, err, errors.ErrorInvalidConfig)
}
