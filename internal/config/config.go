package config

import (
	"io/fs"
	"time"
)

// -----------------------------------------------------------------------------
// Build Information
// -----------------------------------------------------------------------------

// Build variables are injected via -ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// UserAgent identifies the HTTP client.
var UserAgent = "Go-Reminder/" + Version

// -----------------------------------------------------------------------------
// Application Constants
// -----------------------------------------------------------------------------

const (
	AppName        = "Go Reminder"
	AppID          = "com.github.tartampluch.go-reminder"
	KeyringService = "com.github.tartampluch.go-reminder"
	KeyringWeather = "openweathermap_api_key"

	LocalhostBindAddr = "127.0.0.1"
	LogFileName       = "app.log"
	SettingsFileName  = "settings.yaml"
	DatabaseFileName  = "reminder.db"
)

// -----------------------------------------------------------------------------
// Exit Codes
// -----------------------------------------------------------------------------

const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1
)

// -----------------------------------------------------------------------------
// System & File Permissions
// -----------------------------------------------------------------------------

const (
	// FilePermUserRW represents -rw------- (Read/Write for owner only).
	// Used for sensitive files like logs and settings.
	FilePermUserRW fs.FileMode = 0600

	// DirPermUserRWX represents drwx------ (Read/Write/Exec for owner only).
	// Used for creating secure data directories.
	DirPermUserRWX fs.FileMode = 0700

	// ChannelBufferSize defines the standard buffer size for internal signaling channels.
	ChannelBufferSize = 1
)

// -----------------------------------------------------------------------------
// CLI Flags & Descriptions
// -----------------------------------------------------------------------------

const (
	FlagVersion      = "version"
	FlagDebug        = "debug"
	FlagConfig       = "config"
	FlagOnce         = "once"
	FlagDescVersion  = "Show application version and exit"
	FlagDescDebug    = "Enable debug logging to stdout"
	FlagDescConfig   = "Path to the settings file (defaults to the user config dir)"
	FlagDescOnce     = "Run a single dispatcher tick and exit"
	MsgVersionOutput = "%s version %s (%s/%s)\n"
)

// -----------------------------------------------------------------------------
// Scheduling Defaults
// -----------------------------------------------------------------------------

const (
	// DefaultTickInterval drives the dispatcher. Alarms and reminders are
	// minute-granularity, so ten seconds leaves ample margin.
	DefaultTickInterval = 10 * time.Second

	// DefaultWeatherRefresh keeps current-conditions reports half-hourly.
	DefaultWeatherRefresh = 30 * time.Minute

	// DefaultFlushInterval is the debounce interval for persistence flushes.
	DefaultFlushInterval = 15 * time.Second

	// DedupRetention bounds the delivery journal. Anything older than the
	// horizon can no longer collide with a tick window.
	DedupRetention = 24 * time.Hour

	// DefaultAlarmDuration is the auto-dismiss delay in effect when an alarm
	// does not carry its own duration.
	DefaultAlarmDuration = 60 * time.Second

	// DefaultReminderOffset applies to calendar events created without an
	// explicit reminder lead time.
	DefaultReminderOffset = 15 * time.Minute
)

// -----------------------------------------------------------------------------
// Weather API (OpenWeatherMap)
// -----------------------------------------------------------------------------

const (
	WeatherAPIURL      = "https://api.openweathermap.org/data/2.5/weather"
	WeatherParamKey    = "appid"
	WeatherParamUnits  = "units"
	WeatherParamCity   = "q"
	WeatherParamLat    = "lat"
	WeatherParamLon    = "lon"
	WeatherUnitsMetric = "metric"

	WeatherMaxRetries   = 3
	WeatherRetryBackoff = 2 * time.Second
)

// -----------------------------------------------------------------------------
// Network & Timeouts
// -----------------------------------------------------------------------------

const (
	HTTPTimeout         = 30 * time.Second
	ShutdownTimeout     = 5 * time.Second
	ServerReadTimeout   = 10 * time.Second
	ServerWriteTimeout  = 30 * time.Second
	ServerIdleTimeout   = 60 * time.Second
	RetryAfterSeconds   = "10"
	AllowedMethods      = "GET, HEAD"
	MaxHTTPResponseSize = 4 * 1024 * 1024 // 4MB; weather payloads are tiny
	SchemeHTTP          = "http"
	SchemeHTTPS         = "https"
	RouteCalendar       = "/"
	AddrSeparator       = ":"

	MinPort = 1
	MaxPort = 65535
)

// -----------------------------------------------------------------------------
// HTTP Headers & MIME Types
// -----------------------------------------------------------------------------

const (
	HeaderContentType     = "Content-Type"
	HeaderCacheControl    = "Cache-Control"
	HeaderETag            = "ETag"
	HeaderLastModified    = "Last-Modified"
	HeaderRetryAfter      = "Retry-After"
	HeaderAllow           = "Allow"
	HeaderXContentType    = "X-Content-Type-Options"
	HeaderUserAgent       = "User-Agent"
	HeaderIfNoneMatch     = "If-None-Match"
	HeaderIfModifiedSince = "If-Modified-Since"

	MimeTextCalendar    = "text/calendar; charset=utf-8"
	MimeNoSniff         = "nosniff"
	CacheControlPrivate = "private, no-cache"

	// FormatETag expects a string argument.
	FormatETag = `"%s"`

	HTTPMsgMethodNotAll = "Method Not Allowed"
	HTTPMsgInitializing = "Calendar feed is initializing"
)

// -----------------------------------------------------------------------------
// Standards: iCalendar Export
// -----------------------------------------------------------------------------

const (
	ICalVersion = "2.0"
	ICalProdid  = "-//Go Reminder//Engine//EN"
	ICalCalName = "Reminders"
	ICalMethod  = "PUBLISH"
	ICalScale   = "GREGORIAN"
	ICalDomain  = "goreminder"

	PropUID         = "UID"
	PropSummary     = "SUMMARY"
	PropDescription = "DESCRIPTION"
	PropDTStart     = "DTSTART"
	PropDTEnd       = "DTEND"
	PropDTStamp     = "DTSTAMP"
	PropCategories  = "CATEGORIES"
	PropVersion     = "VERSION"
	PropProdid      = "PRODID"
	PropXWRCalName  = "X-WR-CALNAME"
	PropCalScale    = "CALSCALE"
	PropMethod      = "METHOD"

	FormatEventUID = "%s@%s"

	// StubVCalendar is served while the registry is empty. Some clients flag
	// a feed with zero components as invalid, so the stub stays minimal yet
	// well-formed.
	StubVCalendar = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//Go Reminder//Engine//EN\r\nEND:VCALENDAR\r\n"
)

// -----------------------------------------------------------------------------
// Defaults & Business Logic
// -----------------------------------------------------------------------------

const (
	DefaultPort     = "18090"
	DefaultLanguage = "en"
	DefaultCity     = "Paris"
	DefaultUnits    = WeatherUnitsMetric

	// TimeOfDayLayout parses alarm trigger times ("HH:MM").
	TimeOfDayLayout = "15:04"
)

// SupportedLanguages defines the list of available message languages (ISO 639-1).
var SupportedLanguages = []string{"en", "fr"}

// -----------------------------------------------------------------------------
// Error Messages (Technical/Logs)
// -----------------------------------------------------------------------------

const (
	ErrSettingsPathEmpty = "configuration error: settings path is empty"
	ErrSettingsNil       = "configuration error: settings is nil"
	ErrServerStartup     = "server startup failed"
	ErrServerShutdown    = "server shutdown failed"
	ErrPortRequired      = "server port is required"
	ErrInvalidURL        = "invalid URL structure"
	ErrProtocol          = "unsupported protocol scheme (http/https only)"
	ErrICalEncode        = "failed to encode iCalendar data"
	ErrLogFile           = "failed to open log file"
	ErrCacheDir          = "could not determine user cache dir"
	ErrConfigDir         = "could not determine user config dir"
	ErrCreateDir         = "could not create app data dir"
	ErrAppFailed         = "application failed unexpectedly"
	ErrWriteResp         = "failed to write response body"
	ErrLocalesAccess     = "failed to access embedded locales"
	ErrLocaleLoad        = "failed to load locale file"
	ErrLocNotInit        = "localizer not initialized"

	ErrTitleEmpty       = "validation error: title must not be empty"
	ErrEndBeforeStart   = "validation error: end must not be before start"
	ErrTimeOfDayInvalid = "validation error: trigger time must be HH:MM"
	ErrDurationNegative = "validation error: duration must not be negative"
	ErrOffsetNegative   = "validation error: reminder offset must not be negative"
	ErrMonthDayRange    = "validation error: day of month must be between 1 and 31"
	ErrWeekdaysEmpty    = "validation error: weekly rule requires at least one weekday"
	ErrCountNegative    = "validation error: occurrence count must not be negative"
	ErrFrequencyUnknown = "validation error: unknown recurrence frequency"
	ErrAlarmDuplicate   = "validation error: an alarm with this time and weekdays already exists"
	ErrAlarmNotFound    = "alarm not found"
	ErrEventNotFound    = "calendar event not found"
	ErrWindowInverted   = "recurrence window end is before start"
	ErrAPIKeyMissing    = "weather API key is not configured"
	ErrWeatherStatus    = "weather API returned unexpected status"
	ErrWeatherDecode    = "failed to decode weather payload"
	ErrWeatherExhausted = "weather fetch failed after retries"
	ErrWeatherLocation  = "either city or lat/lon must be provided"
	ErrStoreOpen        = "failed to open database"
	ErrStoreSchema      = "failed to apply database schema"
	ErrStoreScan        = "failed to scan database row"
	ErrStoreFlush       = "failed to flush state to database"
	ErrSchedulerSpec    = "invalid scheduler entry"
)

// -----------------------------------------------------------------------------
// Log Messages
// -----------------------------------------------------------------------------

const (
	MsgAppStarting    = "Starting application"
	MsgAppStop        = "Application stopped gracefully"
	MsgCtxCancel      = "Context cancelled, shutting down"
	MsgServerListen   = "HTTP server listening"
	MsgServerStop     = "Shutting down HTTP server..."
	MsgCacheUpdated   = "Calendar feed cache updated"
	MsgTickStart      = "Dispatcher tick started"
	MsgTickDone       = "Dispatcher tick finished"
	MsgClockRegressed = "Clock regression detected, resetting tick window"
	MsgSourceSkipped  = "Skipping malformed or deleted source"
	MsgOccurrenceDue  = "Occurrence promoted to notification"
	MsgAlarmOneShot   = "One-shot alarm deactivated after delivery"
	MsgAlarmDismissed = "Alarm auto-dismissed"
	MsgJournalPruned  = "Delivery journal pruned"
	MsgAlarmAdded     = "Alarm added"
	MsgAlarmUpdated   = "Alarm updated"
	MsgAlarmRemoved   = "Alarm removed"
	MsgEventAdded     = "Calendar event added"
	MsgEventUpdated   = "Calendar event updated"
	MsgEventRemoved   = "Calendar event removed"
	MsgNotifAdded     = "Notification added"
	MsgNotifRemoved   = "Notification removed"
	MsgNotifCleared   = "Notifications cleared"
	MsgStoreLoaded    = "State restored from database"
	MsgStoreFlushed   = "State flushed to database"
	MsgWeatherStart   = "Weather refresh started"
	MsgWeatherDone    = "Weather refresh finished"
	MsgWeatherRetry   = "Weather fetch failed, retrying"
	MsgLocaleSkip     = "Skipping non-locale file"
	MsgLocaleBadName  = "Skipping malformed locale filename"
	MsgLocaleLoaded   = "Locale loaded successfully"
	MsgTransMissing   = "Missing translation key"
	MsgSchedulerStart = "Scheduler started"
	MsgSchedulerStop  = "Scheduler stopped"
	MsgKeyringMiss    = "API key retrieval failed (might be empty)"
	MsgPortInvalid    = "Invalid listen port, using default"
	MsgLogWarning     = "Warning: %s at %s: %v\n"
)

// -----------------------------------------------------------------------------
// Fallback Message Formats
// -----------------------------------------------------------------------------

const (
	FallbackAlarmMsg      = "Alarm: %s"
	FallbackAlarmBare     = "Alarm at %s"
	FallbackDismissMsg    = "Alarm %q auto-dismissed"
	FallbackReminderMsg   = "Upcoming event: %s"
	FallbackWeatherMsg    = "%s: %s, %.1f°C"
	FallbackEventUntitled = "Untitled Event"

	FallbackTitleAlarm     = "Alarm"
	FallbackTitleDismissed = "Alarm dismissed"
	FallbackTitleReminder  = "Reminder"
	FallbackTitleWeather   = "Weather"
)

// -----------------------------------------------------------------------------
// Translation Keys (I18n)
// -----------------------------------------------------------------------------

const (
	TKeyAlarmFired     = "notif_alarm_fired"      // Requires Label
	TKeyAlarmFiredBare = "notif_alarm_fired_bare" // Requires Time
	TKeyAlarmDismissed = "notif_alarm_dismissed"  // Requires Label
	TKeyEventReminder  = "notif_event_reminder"   // Requires Title
	TKeyWeatherReport  = "notif_weather_report"   // Requires City, Description, Temp
	TKeyTitleAlarm     = "title_alarm"
	TKeyTitleDismissed = "title_dismissed"
	TKeyTitleReminder  = "title_reminder"
	TKeyTitleWeather   = "title_weather"
)

// -----------------------------------------------------------------------------
// Structured Logging Keys (slog)
// -----------------------------------------------------------------------------

const (
	LogKeyComponent  = "component"
	LogKeyError      = "error"
	LogKeyURL        = "url"
	LogKeyStatus     = "status_code"
	LogKeyFile       = "file"
	LogKeyLang       = "lang"
	LogKeyKey        = "key"
	LogKeyPort       = "port"
	LogKeyCount      = "count"
	LogKeyID         = "id"
	LogKeySource     = "source_id"
	LogKeyKind       = "kind"
	LogKeyOccurrence = "occurrence"
	LogKeyWindowFrom = "window_from"
	LogKeyWindowTo   = "window_to"
	LogKeyDelivered  = "delivered"
	LogKeyPruned     = "pruned"
	LogKeyLabel      = "label"
	LogKeyTitle      = "title"
	LogKeyCity       = "city"
	LogKeyAttempt    = "attempt"
	LogKeyDuration   = "duration_ms"
	LogKeySizeBytes  = "size_bytes"
	LogKeyETag       = "etag"
	LogKeyValue      = "value"
	LogKeyPath       = "path"

	// Startup Info Keys
	LogKeyBuild   = "build"
	LogKeyApp     = "app"
	LogKeyVersion = "version"
	LogKeyGoVer   = "go_version"
	LogKeyEnv     = "env"
	LogKeyOS      = "os"
	LogKeyArch    = "arch"
	LogKeyPID     = "pid"
)

// -----------------------------------------------------------------------------
// Log Components
// -----------------------------------------------------------------------------

const (
	CompDispatcher = "dispatcher"
	CompRegistry   = "registry"
	CompNotify     = "notify"
	CompStore      = "store"
	CompWeather    = "weather"
	CompServer     = "server"
	CompScheduler  = "scheduler"
	CompMain       = "main"
	CompI18n       = "i18n"
)
