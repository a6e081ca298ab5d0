package weather

import (
	"log/slog"

	"github.com/zalando/go-keyring"

	"github.com/tartampluch/go-reminder/internal/config"
)

// LoadAPIKey retrieves the OpenWeatherMap API key from the OS keyring.
// A missing key is not an error; it disables the weather collaborator.
func LoadAPIKey() string {
	key, err := keyring.Get(config.KeyringService, config.KeyringWeather)
	if err != nil {
		slog.Debug(config.MsgKeyringMiss,
			slog.String(config.LogKeyComponent, config.CompWeather),
			slog.String(config.LogKeyError, err.Error()),
		)
		return ""
	}
	return key
}

// StoreAPIKey persists the OpenWeatherMap API key in the OS keyring.
func StoreAPIKey(key string) error {
	return keyring.Set(config.KeyringService, config.KeyringWeather, key)
}
