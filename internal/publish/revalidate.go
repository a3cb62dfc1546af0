package publish

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/actuaryhelp/casefeed/internal/platform/observability"
)

var revalidatePaths = []string{"/cases", "/matrix", "/"}

// Revalidator pings the frontend's cache revalidation endpoint after a
// publication run. Failures are logged only, never fatal.
type Revalidator struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *zerolog.Logger
}

func NewRevalidator(baseURL, token string, logger *zerolog.Logger) *Revalidator {
	return &Revalidator{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
}

// Trigger revalidates the key frontend pages.
func (r *Revalidator) Trigger(ctx context.Context) {
	if r.baseURL == "" || r.token == "" {
		r.logger.Warn().Msg("revalidation not configured, skipping")
		return
	}

	for _, path := range revalidatePaths {
		if err := r.revalidatePath(ctx, path); err != nil {
			observability.RevalidationRequests.WithLabelValues(path, "error").Inc()
			r.logger.Warn().Err(err).Str("path", path).Msg("revalidation failed")

			continue
		}

		observability.RevalidationRequests.WithLabelValues(path, "ok").Inc()
		r.logger.Info().Str("path", path).Msg("revalidated")
	}
}

func (r *Revalidator) revalidatePath(ctx context.Context, path string) error {
	endpoint := fmt.Sprintf("%s/api/revalidate?path=%s&token=%s",
		r.baseURL, url.QueryEscape(path), url.QueryEscape(r.token))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return nil
}
