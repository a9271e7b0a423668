package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudu/drowsewatch/internal/drowsiness"
)

func TestLoad_DefaultValues(t *testing.T) {
	os.Clearenv()
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, drowsiness.DefaultThresholds(), cfg.Thresholds())
	assert.False(t, cfg.ResetOnFaceLoss)
	assert.Equal(t, 1, cfg.MaxFaces)
	assert.Equal(t, ProviderONNX, cfg.Provider)
	assert.Equal(t, "fatigue_log.csv", cfg.LogFile)
	assert.Equal(t, "alarm.wav", cfg.AlarmSound)
	assert.Empty(t, cfg.EventDB)
	assert.Equal(t, 0, cfg.VideoSource())
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	os.Clearenv()
	t.Chdir(t.TempDir())
	t.Setenv("DROWSE_EAR_THRESHOLD", "0.21")
	t.Setenv("DROWSE_EAR_CONSEC_FRAMES", "20")
	t.Setenv("DROWSE_MOUTH_THRESHOLD", "0.55")
	t.Setenv("DROWSE_NOD_THRESHOLD", "12.5")
	t.Setenv("DROWSE_PROVIDER", "mediapipe")
	t.Setenv("DROWSE_VIDEO_FILE", "drive.mp4")
	t.Setenv("DROWSE_EVENT_DB", "events.db")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, drowsiness.Thresholds{
		EyeAspectRatio:       0.21,
		EyeConsecutiveFrames: 20,
		MouthOpen:            0.55,
		HeadNodDegrees:       12.5,
	}, cfg.Thresholds())
	assert.Equal(t, ProviderMediaPipe, cfg.Provider)
	assert.Equal(t, "drive.mp4", cfg.VideoSource())
	assert.Equal(t, "events.db", cfg.EventDB)
}

func TestLoad_DotEnv(t *testing.T) {
	os.Clearenv()
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(".env", []byte("DROWSE_MAX_FACES=3\nDROWSE_LOG_LEVEL=debug\n"), 0o644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.MaxFaces)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_BadValue(t *testing.T) {
	os.Clearenv()
	t.Chdir(t.TempDir())
	t.Setenv("DROWSE_EAR_CONSEC_FRAMES", "fifteen")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*Config)
	}{
		{"zero consecutive frames", func(c *Config) { c.EyeARConsecFrames = 0 }},
		{"unknown provider", func(c *Config) { c.Provider = "dlib" }},
		{"no faces", func(c *Config) { c.MaxFaces = 0 }},
		{"zero fps", func(c *Config) { c.TargetFPS = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			t.Chdir(t.TempDir())
			cfg, err := Load()
			require.NoError(t, err)
			tt.mut(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
