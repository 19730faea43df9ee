package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
)

var ErrNoLanguages = errors.New("indexer returned no languages")

// fallbackLanguages keeps language validation working when the indexer is
// unreachable. It mirrors the set the major metadata providers support.
var fallbackLanguages = []string{
	"en", "sv", "no", "da", "fi", "nl", "de", "it", "es", "fr", "pl",
	"hu", "el", "tr", "ru", "he", "ja", "pt", "zh", "cs", "sl", "hr", "ko",
}

// Service exposes the indexer metadata the settings layer needs: the set of
// languages shows can be fetched in. Results are cached with a TTL so the
// update endpoint does not hit the indexer on every submission.
type Service struct {
	httpc   *http.Client
	baseURL string
	apiKey  string

	mu        sync.RWMutex
	languages []string
	fetchedAt time.Time
	ttl       time.Duration
}

// NewService creates an indexer service. An empty baseURL disables remote
// fetching; the fallback set is used instead.
func NewService(baseURL, apiKey string) *Service {
	return &Service{
		httpc:   &http.Client{Timeout: 10 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		ttl:     6 * time.Hour,
	}
}

// SupportedLanguages returns the indexer's language codes, fetching them at
// most once per TTL. On fetch failure a cached or fallback set is returned.
func (s *Service) SupportedLanguages(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	if len(s.languages) > 0 && time.Since(s.fetchedAt) < s.ttl {
		cached := append([]string(nil), s.languages...)
		s.mu.RUnlock()
		return cached, nil
	}
	s.mu.RUnlock()

	if s.baseURL == "" {
		return append([]string(nil), fallbackLanguages...), nil
	}

	langs, err := s.fetchLanguages(ctx)
	if err != nil {
		log.Printf("[indexer] language fetch failed, using fallback set: %v", err)
		s.mu.RLock()
		cached := append([]string(nil), s.languages...)
		s.mu.RUnlock()
		if len(cached) > 0 {
			return cached, nil
		}
		return append([]string(nil), fallbackLanguages...), nil
	}

	s.mu.Lock()
	s.languages = langs
	s.fetchedAt = time.Now()
	s.mu.Unlock()

	return append([]string(nil), langs...), nil
}

// IsSupported reports whether the language code is in the indexer's set.
func (s *Service) IsSupported(ctx context.Context, code string) (bool, error) {
	langs, err := s.SupportedLanguages(ctx)
	if err != nil {
		return false, err
	}
	for _, l := range langs {
		if strings.EqualFold(l, code) {
			return true, nil
		}
	}
	return false, nil
}

type languagesResponse struct {
	Data []struct {
		Abbreviation string `json:"abbreviation"`
		Name         string `json:"name"`
	} `json:"data"`
}

func (s *Service) fetchLanguages(ctx context.Context) ([]string, error) {
	var langs []string

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/languages", nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			if s.apiKey != "" {
				req.Header.Set("Authorization", "Bearer "+s.apiKey)
			}

			resp, err := s.httpc.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("indexer languages: status %d", resp.StatusCode)
			}

			var parsed languagesResponse
			if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
				return fmt.Errorf("decode languages: %w", err)
			}

			langs = langs[:0]
			for _, l := range parsed.Data {
				if code := strings.TrimSpace(l.Abbreviation); code != "" {
					langs = append(langs, code)
				}
			}
			if len(langs) == 0 {
				return ErrNoLanguages
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return langs, nil
}
