// Package i18n renders localized notification text. It owns the translation
// bundle and implements the formatter contracts of the dispatcher and the
// weather collaborator, so scheduling code never touches message catalogs.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	"github.com/tartampluch/go-reminder/internal/config"
	"github.com/tartampluch/go-reminder/internal/model"
	"github.com/tartampluch/go-reminder/internal/weather"
)

//go:embed locales/*.json
var localeFS embed.FS

// Messages translates notification text for one configured language.
// Missing keys fall back to plain English formats, never to an error.
type Messages struct {
	bundle    *i18n.Bundle
	localizer *i18n.Localizer
}

// New builds the translation bundle from the embedded locale files and
// selects the given language. An unknown language falls back to English.
func New(lang string) *Messages {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		slog.Error(config.ErrLocalesAccess,
			config.LogKeyComponent, config.CompI18n,
			config.LogKeyError, err,
		)
		return &Messages{bundle: bundle}
	}

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "active.") || !strings.HasSuffix(name, ".json") {
			slog.Debug(config.MsgLocaleSkip,
				config.LogKeyComponent, config.CompI18n,
				config.LogKeyFile, name,
			)
			continue
		}

		langCode := strings.TrimSuffix(strings.TrimPrefix(name, "active."), ".json")
		if langCode == "" {
			slog.Warn(config.MsgLocaleBadName,
				config.LogKeyComponent, config.CompI18n,
				config.LogKeyFile, name,
			)
			continue
		}

		path := "locales/" + name
		if _, err := bundle.LoadMessageFileFS(localeFS, path); err != nil {
			slog.Error(config.ErrLocaleLoad,
				config.LogKeyComponent, config.CompI18n,
				config.LogKeyFile, name,
				config.LogKeyError, err,
			)
		} else {
			slog.Debug(config.MsgLocaleLoaded,
				config.LogKeyComponent, config.CompI18n,
				config.LogKeyLang, langCode,
				config.LogKeyFile, name,
			)
		}
	}

	if lang == "" {
		lang = config.DefaultLanguage
	}

	return &Messages{
		bundle:    bundle,
		localizer: i18n.NewLocalizer(bundle, lang),
	}
}

// get translates a key with template data, returning ok=false on any miss so
// callers can apply their fallback format.
func (m *Messages) get(key string, data map[string]interface{}) (string, bool) {
	if m.localizer == nil {
		slog.Debug(config.ErrLocNotInit,
			config.LogKeyComponent, config.CompI18n,
			config.LogKeyKey, key,
		)
		return "", false
	}
	msg, err := m.localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    key,
		TemplateData: data,
	})
	if err != nil {
		slog.Debug(config.MsgTransMissing,
			config.LogKeyComponent, config.CompI18n,
			config.LogKeyKey, key,
			config.LogKeyError, err.Error(),
		)
		return "", false
	}
	return msg, true
}

func (m *Messages) title(key, fallback string) string {
	if msg, ok := m.get(key, nil); ok {
		return msg
	}
	return fallback
}

// AlarmFired renders the notification for an alarm reaching its trigger time.
// Unlabeled alarms get the bare variant showing the trigger time instead.
func (m *Messages) AlarmFired(a model.Alarm) (string, string) {
	title := m.title(config.TKeyTitleAlarm, config.FallbackTitleAlarm)

	if a.Label == "" {
		when := a.TimeOfDay.String()
		if msg, ok := m.get(config.TKeyAlarmFiredBare, map[string]interface{}{"Time": when}); ok {
			return title, msg
		}
		return title, fmt.Sprintf(config.FallbackAlarmBare, when)
	}

	if msg, ok := m.get(config.TKeyAlarmFired, map[string]interface{}{"Label": a.Label}); ok {
		return title, msg
	}
	return title, fmt.Sprintf(config.FallbackAlarmMsg, a.Label)
}

// AlarmDismissed renders the follow-up posted when an alarm auto-dismisses.
func (m *Messages) AlarmDismissed(a model.Alarm) (string, string) {
	title := m.title(config.TKeyTitleDismissed, config.FallbackTitleDismissed)

	label := a.Label
	if label == "" {
		label = a.TimeOfDay.String()
	}
	if msg, ok := m.get(config.TKeyAlarmDismissed, map[string]interface{}{"Label": label}); ok {
		return title, msg
	}
	return title, fmt.Sprintf(config.FallbackDismissMsg, label)
}

// EventReminder renders the lead-time notification for a calendar event.
func (m *Messages) EventReminder(e model.CalendarEvent) (string, string) {
	title := m.title(config.TKeyTitleReminder, config.FallbackTitleReminder)

	name := e.Title
	if name == "" {
		name = config.FallbackEventUntitled
	}
	if msg, ok := m.get(config.TKeyEventReminder, map[string]interface{}{"Title": name}); ok {
		return title, msg
	}
	return title, fmt.Sprintf(config.FallbackReminderMsg, name)
}

// WeatherReport renders the periodic current-conditions notification.
func (m *Messages) WeatherReport(r weather.Report) (string, string) {
	title := m.title(config.TKeyTitleWeather, config.FallbackTitleWeather)

	data := map[string]interface{}{
		"City":        r.City,
		"Description": r.Description,
		"Temp":        fmt.Sprintf("%.1f", r.TempC),
	}
	if msg, ok := m.get(config.TKeyWeatherReport, data); ok {
		return title, msg
	}
	return title, fmt.Sprintf(config.FallbackWeatherMsg, r.City, r.Description, r.TempC)
}
