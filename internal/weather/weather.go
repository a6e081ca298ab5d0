// Package weather fetches current conditions from OpenWeatherMap and turns
// them into notifications. It is an optional collaborator: when no API key is
// configured the refresh is a logged no-op.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tartampluch/go-reminder/internal/config"
	"github.com/tartampluch/go-reminder/internal/engine"
	"github.com/tartampluch/go-reminder/internal/model"
)

// Fetcher defines the contract for retrieving raw weather payloads.
// This interface allows for mocking in tests and decoupling from the network layer.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// HTTPFetcher implements Fetcher using the standard net/http library.
type HTTPFetcher struct {
	Client *http.Client
}

// NewHTTPFetcher creates a new instance of HTTPFetcher with configured timeouts.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{
		Client: &http.Client{
			Timeout: config.HTTPTimeout,
		},
	}
}

// Fetch retrieves a weather payload from a remote URL.
// It sanitizes the URL for logging purposes to avoid leaking the API key.
// It enforces a maximum response size limit.
func (f *HTTPFetcher) Fetch(ctx context.Context, targetURL string) (io.ReadCloser, error) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrInvalidURL, err)
	}

	// Security check: ensure strictly HTTP or HTTPS using config constants.
	if u.Scheme != config.SchemeHTTP && u.Scheme != config.SchemeHTTPS {
		return nil, fmt.Errorf("%s: %s", config.ErrProtocol, u.Scheme)
	}

	// Construct a safe URL for logging (stripping query parameters which carry the key).
	safeURL := u.Scheme + "://" + u.Host + u.Path

	log := slog.With(
		slog.String(config.LogKeyComponent, config.CompWeather),
		slog.String(config.LogKeyURL, safeURL),
	)

	log.Debug("Initiating weather download")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set(config.HeaderUserAgent, config.UserAgent)

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error during fetch: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close() // Ensure we don't leak resources on error.
		log.Warn("Server returned error status",
			slog.Int(config.LogKeyStatus, resp.StatusCode),
		)
		return nil, fmt.Errorf("%s: %d %s", config.ErrWeatherStatus, resp.StatusCode, resp.Status)
	}

	return &limitedReadCloser{
		Reader: io.LimitReader(resp.Body, config.MaxHTTPResponseSize),
		Closer: resp.Body,
	}, nil
}

// limitedReadCloser wraps an io.Reader (Limited) and the original io.Closer.
// This ensures we can close the network connection properly while limiting the read size.
type limitedReadCloser struct {
	io.Reader
	io.Closer
}

func (l *limitedReadCloser) Read(p []byte) (n int, err error) {
	return l.Reader.Read(p)
}

func (l *limitedReadCloser) Close() error {
	return l.Closer.Close()
}

// Report is a decoded current-conditions snapshot.
type Report struct {
	City        string
	Description string
	TempC       float64
	FeelsLikeC  float64
	Humidity    int
}

// owmPayload mirrors the subset of the OpenWeatherMap response we consume.
type owmPayload struct {
	Name    string `json:"name"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
}

// Formatter renders the weather notification text. Optional; the service
// falls back to a plain format when nil.
type Formatter interface {
	WeatherReport(r Report) (title, body string)
}

// Service refreshes weather conditions and posts them to the notification
// center. Fields must be set before the first Refresh.
type Service struct {
	Fetcher  Fetcher
	Sink     engine.NotificationSink
	Messages Formatter // optional

	APIKey   string
	Settings config.WeatherSettings

	// Backoff is the delay between retry attempts.
	// Zero means config.WeatherRetryBackoff.
	Backoff time.Duration
}

// Refresh fetches current conditions, retrying transient failures, and posts
// the resulting report as a notification. It returns the decoded report so
// callers can display it without going through the center.
func (s *Service) Refresh(ctx context.Context) (Report, error) {
	log := slog.With(slog.String(config.LogKeyComponent, config.CompWeather))

	if s.APIKey == "" {
		return Report{}, fmt.Errorf("%s", config.ErrAPIKeyMissing)
	}

	target, err := s.buildURL()
	if err != nil {
		return Report{}, err
	}

	log.Info(config.MsgWeatherStart, slog.String(config.LogKeyCity, s.Settings.City))

	var lastErr error
	for attempt := 1; attempt <= config.WeatherMaxRetries; attempt++ {
		report, err := s.fetchOnce(ctx, target)
		if err == nil {
			s.post(report)
			log.Info(config.MsgWeatherDone,
				slog.String(config.LogKeyCity, report.City),
			)
			return report, nil
		}
		lastErr = err
		log.Warn(config.MsgWeatherRetry,
			slog.Int(config.LogKeyAttempt, attempt),
			slog.String(config.LogKeyError, err.Error()),
		)
		if attempt < config.WeatherMaxRetries {
			backoff := s.Backoff
			if backoff == 0 {
				backoff = config.WeatherRetryBackoff
			}
			select {
			case <-ctx.Done():
				return Report{}, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return Report{}, fmt.Errorf("%s: %w", config.ErrWeatherExhausted, lastErr)
}

func (s *Service) buildURL() (string, error) {
	params := url.Values{}
	params.Set(config.WeatherParamKey, s.APIKey)

	units := s.Settings.Units
	if units == "" {
		units = config.DefaultUnits
	}
	params.Set(config.WeatherParamUnits, units)

	switch {
	case s.Settings.Lat != nil && s.Settings.Lon != nil:
		params.Set(config.WeatherParamLat, strconv.FormatFloat(*s.Settings.Lat, 'f', -1, 64))
		params.Set(config.WeatherParamLon, strconv.FormatFloat(*s.Settings.Lon, 'f', -1, 64))
	case s.Settings.City != "":
		params.Set(config.WeatherParamCity, s.Settings.City)
	default:
		return "", fmt.Errorf("%s", config.ErrWeatherLocation)
	}

	return config.WeatherAPIURL + "?" + params.Encode(), nil
}

func (s *Service) fetchOnce(ctx context.Context, target string) (Report, error) {
	body, err := s.Fetcher.Fetch(ctx, target)
	if err != nil {
		return Report{}, err
	}
	defer body.Close()

	var payload owmPayload
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return Report{}, fmt.Errorf("%s: %w", config.ErrWeatherDecode, err)
	}

	report := Report{
		City:       payload.Name,
		TempC:      payload.Main.Temp,
		FeelsLikeC: payload.Main.FeelsLike,
		Humidity:   payload.Main.Humidity,
	}
	if len(payload.Weather) > 0 {
		report.Description = payload.Weather[0].Description
	}
	return report, nil
}

func (s *Service) post(r Report) {
	if s.Sink == nil {
		return
	}
	title, body := s.format(r)
	s.Sink.Add(model.Notification{
		Kind:    model.SourceWeather,
		Title:   title,
		Message: body,
	})
}

func (s *Service) format(r Report) (string, string) {
	if s.Messages != nil {
		return s.Messages.WeatherReport(r)
	}
	return config.AppName, fmt.Sprintf(config.FallbackWeatherMsg, r.City, r.Description, r.TempC)
}
