package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// ReplenishNotifier pushes cache-refresh events to the replenishment wizard
// so operator screens pick up canister changes without polling.
type ReplenishNotifier interface {
	RefreshCanister(ctx context.Context, companyID, deviceID, canisterID int64)
}

// CacheRefresh is the wire payload consumed by the wizard cache.
type CacheRefresh struct {
	CompanyID  int64 `json:"company_id"`
	DeviceID   int64 `json:"device_id"`
	CanisterID int64 `json:"canister_id"`
}

type httpNotifier struct {
	url    string
	client *http.Client
	logger zerolog.Logger
}

// NewHTTPNotifier builds a notifier that POSTs refresh events to url.
// Delivery is best-effort: failures are logged, never returned, so a dead
// cache endpoint cannot fail a scheduling transaction.
func NewHTTPNotifier(url string, logger zerolog.Logger) ReplenishNotifier {
	return &httpNotifier{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
		logger: logger,
	}
}

func (n *httpNotifier) RefreshCanister(ctx context.Context, companyID, deviceID, canisterID int64) {
	payload, err := json.Marshal(CacheRefresh{
		CompanyID:  companyID,
		DeviceID:   deviceID,
		CanisterID: canisterID,
	})
	if err != nil {
		n.logger.Error().Err(err).Msg("marshal replenish cache refresh")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		n.logger.Error().Err(err).Msg("build replenish cache request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn().Err(err).Int64("canister_id", canisterID).Msg("replenish cache refresh failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		n.logger.Warn().
			Int("status", resp.StatusCode).
			Int64("canister_id", canisterID).
			Msg(fmt.Sprintf("replenish cache rejected refresh: %s", resp.Status))
	}
}

// Noop is used when no cache endpoint is configured.
type Noop struct{}

func (Noop) RefreshCanister(context.Context, int64, int64, int64) {}
