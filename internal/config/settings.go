package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// WeatherSettings describes the location and units for weather refreshes.
// The API key itself lives in the system keyring, never in this file.
type WeatherSettings struct {
	// City is a free-form location name resolved by the weather API.
	// Ignored when Lat/Lon are both set.
	City string `yaml:"city" json:"city"`

	Lat *float64 `yaml:"lat,omitempty" json:"lat,omitempty"`
	Lon *float64 `yaml:"lon,omitempty" json:"lon,omitempty"`

	// Units is the measurement system ("metric", "imperial", "standard").
	Units string `yaml:"units" json:"units"`

	// RefreshInterval between weather fetches.
	RefreshInterval time.Duration `yaml:"refresh_interval" json:"refresh_interval"`
}

// Settings is the top-level user configuration persisted as YAML.
type Settings struct {
	// Port is the HTTP listen port for the read-only calendar feed.
	Port string `yaml:"port" json:"port"`

	// Language selects the message locale for generated notifications.
	Language string `yaml:"language" json:"language"`

	// TickInterval drives the dispatcher's due-detection pass.
	TickInterval time.Duration `yaml:"tick_interval" json:"tick_interval"`

	// FlushInterval is the debounce for persistence flushes.
	FlushInterval time.Duration `yaml:"flush_interval" json:"flush_interval"`

	// DatabasePath overrides the default database location when set.
	DatabasePath string `yaml:"database_path,omitempty" json:"database_path,omitempty"`

	Weather WeatherSettings `yaml:"weather" json:"weather"`
}

// DefaultSettings returns an in-memory default configuration.
func DefaultSettings() *Settings {
	return &Settings{
		Port:          DefaultPort,
		Language:      DefaultLanguage,
		TickInterval:  DefaultTickInterval,
		FlushInterval: DefaultFlushInterval,
		Weather: WeatherSettings{
			City:            DefaultCity,
			Units:           DefaultUnits,
			RefreshInterval: DefaultWeatherRefresh,
		},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled settings files (e.g., older versions) still behave correctly.
func (s *Settings) Normalize() {
	if s.Port == "" {
		s.Port = DefaultPort
	} else if p, err := strconv.Atoi(s.Port); err != nil || p < MinPort || p > MaxPort {
		slog.Warn(MsgPortInvalid,
			LogKeyComponent, CompMain,
			LogKeyValue, s.Port,
		)
		s.Port = DefaultPort
	}
	switch s.Language {
	case "":
		s.Language = DefaultLanguage
	default:
		known := false
		for _, lang := range SupportedLanguages {
			if s.Language == lang {
				known = true
				break
			}
		}
		if !known {
			s.Language = DefaultLanguage
		}
	}
	if s.TickInterval <= 0 {
		s.TickInterval = DefaultTickInterval
	}
	if s.FlushInterval <= 0 {
		s.FlushInterval = DefaultFlushInterval
	}
	if s.Weather.Units == "" {
		s.Weather.Units = DefaultUnits
	}
	if s.Weather.RefreshInterval <= 0 {
		s.Weather.RefreshInterval = DefaultWeatherRefresh
	}
	if s.Weather.City == "" && (s.Weather.Lat == nil || s.Weather.Lon == nil) {
		s.Weather.City = DefaultCity
	}
}

// LoadSettings loads settings from the given YAML path.
//
// Behavior:
//   - If the file does not exist: create the parent directory, write a
//     default settings file with 0600 perms, and return the defaults.
//   - If the file exists: read YAML, unmarshal, normalize defaults.
func LoadSettings(path string) (*Settings, error) {
	if path == "" {
		return nil, errors.New(ErrSettingsPathEmpty)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create a default settings file.
			s := DefaultSettings()
			if err := SaveSettings(path, s); err != nil {
				// Even if save fails, return defaults with the error so the
				// caller can decide.
				return s, err
			}
			return s, nil
		}
		return nil, err
	}

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	s.Normalize()

	return &s, nil
}

// SaveSettings writes the given settings to the specified path.
//
// The write is atomic: marshal to a temp file in the target directory,
// chmod to 0600, then rename over the destination.
func SaveSettings(path string, s *Settings) error {
	if path == "" {
		return errors.New(ErrSettingsPathEmpty)
	}
	if s == nil {
		return errors.New(ErrSettingsNil)
	}

	s.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, DirPermUserRWX); err != nil {
		return err
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".go-reminder-settings-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up the temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, FilePermUserRW); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method on Settings that delegates to the
// package-level SaveSettings function.
func (s *Settings) Save(path string) error {
	return SaveSettings(path, s)
}

// DefaultSettingsPath resolves the per-user settings file location.
func DefaultSettingsPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("%s: %w", ErrConfigDir, err)
	}
	return filepath.Join(configDir, AppID, SettingsFileName), nil
}

// DefaultDatabasePath resolves the per-user database location, honoring an
// explicit override from the settings file.
func (s *Settings) DefaultDatabasePath() (string, error) {
	if s.DatabasePath != "" {
		return s.DatabasePath, nil
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("%s: %w", ErrConfigDir, err)
	}
	return filepath.Join(configDir, AppID, DatabaseFileName), nil
}
