package station

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

// maxDocumentBytes bounds how much of a station document is read.
const maxDocumentBytes = 1 << 20

// Source reads a station document from a local path or an http(s) URL.
// Remote documents are copied to the optional disk cache so that a restart
// can proceed while the remote is unreachable.
type Source struct {
	location   string
	httpClient *http.Client
	cache      *Cache
	logger     *slog.Logger
}

// NewSource creates a Source. cache may be nil.
func NewSource(location string, cache *Cache, logger *slog.Logger) *Source {
	return &Source{
		location: location,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache:  cache,
		logger: logger,
	}
}

// Location returns the configured path or URL.
func (s *Source) Location() string {
	return s.location
}

func (s *Source) remote() bool {
	return strings.HasPrefix(s.location, "http://") || strings.HasPrefix(s.location, "https://")
}

// Load reads, parses and validates the station document.
func (s *Source) Load(ctx context.Context) (*Registry, error) {
	data, err := s.read(ctx)
	if err != nil && s.remote() && s.cache != nil {
		cached, ts, cerr := s.cache.LoadLatest()
		if cerr != nil {
			return nil, err
		}
		s.logger.Warn("station source unreachable, using cached copy",
			"source", s.location,
			"error", err,
			"cached_at", ts.UTC().Format(time.RFC3339),
		)
		data, err = cached, nil
	}
	if err != nil {
		return nil, err
	}

	stations, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("station source %s: %w", s.location, err)
	}

	now := time.Now().UTC()
	if s.remote() && s.cache != nil {
		if err := s.cache.Write(data, now); err != nil {
			s.logger.Warn("failed to cache station document", "error", err)
		}
	}

	s.logger.Info("stations loaded",
		"source", s.location,
		"stations", len(stations),
	)
	return &Registry{Source: s.location, LoadedAt: now, Stations: stations}, nil
}

func (s *Source) read(ctx context.Context) ([]byte, error) {
	if !s.remote() {
		f, err := os.Open(s.location)
		if err != nil {
			return nil, fmt.Errorf("opening station file: %w", err)
		}
		defer f.Close()
		return readLimited(f, s.location)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.location, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching station document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, s.location)
	}
	return readLimited(resp.Body, s.location)
}

func readLimited(r io.Reader, location string) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxDocumentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", location, err)
	}
	if len(body) > maxDocumentBytes {
		return nil, fmt.Errorf("%s exceeds %d byte limit", location, maxDocumentBytes)
	}
	return body, nil
}
