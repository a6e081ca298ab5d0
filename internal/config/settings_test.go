package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tartampluch/go-reminder/internal/config"
)

func TestLoadSettings_FirstRunCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.yaml")

	s, err := config.LoadSettings(path)
	require.NoError(t, err)

	assert.Equal(t, config.DefaultPort, s.Port)
	assert.Equal(t, config.DefaultLanguage, s.Language)
	assert.Equal(t, config.DefaultTickInterval, s.TickInterval)
	assert.Equal(t, config.DefaultCity, s.Weather.City)

	// The default file now exists with owner-only permissions.
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, config.FilePermUserRW, info.Mode().Perm())
}

func TestSettings_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")

	lat, lon := 48.8566, 2.3522
	original := &config.Settings{
		Port:          "19000",
		Language:      "fr",
		TickInterval:  5 * time.Second,
		FlushInterval: 30 * time.Second,
		Weather: config.WeatherSettings{
			City:            "Lyon",
			Lat:             &lat,
			Lon:             &lon,
			Units:           "imperial",
			RefreshInterval: time.Hour,
		},
	}
	require.NoError(t, original.Save(path))

	loaded, err := config.LoadSettings(path)
	require.NoError(t, err)

	assert.Equal(t, original.Port, loaded.Port)
	assert.Equal(t, original.Language, loaded.Language)
	assert.Equal(t, original.TickInterval, loaded.TickInterval)
	assert.Equal(t, original.FlushInterval, loaded.FlushInterval)
	assert.Equal(t, original.Weather.City, loaded.Weather.City)
	require.NotNil(t, loaded.Weather.Lat)
	assert.InDelta(t, lat, *loaded.Weather.Lat, 0.0001)
	assert.Equal(t, "imperial", loaded.Weather.Units)
}

func TestLoadSettings_PartialFileGetsNormalized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("language: fr\n"), 0o600))

	s, err := config.LoadSettings(path)
	require.NoError(t, err)

	assert.Equal(t, "fr", s.Language)
	assert.Equal(t, config.DefaultPort, s.Port)
	assert.Equal(t, config.DefaultTickInterval, s.TickInterval)
	assert.Equal(t, config.DefaultWeatherRefresh, s.Weather.RefreshInterval)
	assert.Equal(t, config.DefaultCity, s.Weather.City)
}

func TestNormalize_UnknownLanguageFallsBack(t *testing.T) {
	s := &config.Settings{Language: "klingon"}
	s.Normalize()
	assert.Equal(t, config.DefaultLanguage, s.Language)
}

func TestNormalize_KeepsCoordinatesWithoutCity(t *testing.T) {
	lat, lon := 48.8566, 2.3522
	s := &config.Settings{Weather: config.WeatherSettings{Lat: &lat, Lon: &lon}}
	s.Normalize()

	// A complete coordinate pair is a valid location on its own.
	assert.Empty(t, s.Weather.City)
}

func TestNormalize_LoneCoordinateGetsDefaultCity(t *testing.T) {
	lat := 48.8566
	s := &config.Settings{Weather: config.WeatherSettings{Lat: &lat}}
	s.Normalize()

	assert.Equal(t, config.DefaultCity, s.Weather.City)
}

func TestLoadSettings_EmptyPath(t *testing.T) {
	_, err := config.LoadSettings("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.ErrSettingsPathEmpty)
}

func TestSaveSettings_NilSettings(t *testing.T) {
	err := config.SaveSettings(filepath.Join(t.TempDir(), "s.yaml"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.ErrSettingsNil)
}

func TestSaveSettings_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	require.NoError(t, config.DefaultSettings().Save(path))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "settings.yaml", entries[0].Name())
}

func TestNormalize_PortValidation(t *testing.T) {
	cases := []struct {
		name string
		port string
		want string
	}{
		{"valid port kept", "8080", "8080"},
		{"zero falls back", "0", config.DefaultPort},
		{"above range falls back", "70000", config.DefaultPort},
		{"negative falls back", "-1", config.DefaultPort},
		{"non-numeric falls back", "http", config.DefaultPort},
		{"empty gets default", "", config.DefaultPort},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := config.DefaultSettings()
			s.Port = tc.port
			s.Normalize()
			assert.Equal(t, tc.want, s.Port)
		})
	}
}
