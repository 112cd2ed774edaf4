package rewards

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/defidojo/dojo-backend/internal/app/domain/reward"
	"github.com/defidojo/dojo-backend/pkg/logger"
)

// StatusPoller reports the ledger's view of a broadcast transaction. It must
// tolerate timeouts; an error means the poll itself failed, not the
// transaction.
type StatusPoller interface {
	Check(ctx context.Context, txid string) (reward.ChainStatus, error)
}

// ChainClient polls a Stacks-style node API for transaction status.
type ChainClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	log        *logger.Logger
}

// ChainClientConfig configures the chain client.
type ChainClientConfig struct {
	APIURL  string
	APIKey  string
	Timeout time.Duration
}

// NewChainClient constructs a chain status client.
func NewChainClient(cfg ChainClientConfig, log *logger.Logger) (*ChainClient, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	if base == "" {
		return nil, fmt.Errorf("chain api url required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log == nil {
		log = logger.NewDefault("chain")
	}
	return &ChainClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    base,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		log:        log,
	}, nil
}

// Check fetches the transaction and maps the node's status vocabulary onto
// the settlement states. Unrecognised statuses count as pending.
func (c *ChainClient) Check(ctx context.Context, txid string) (reward.ChainStatus, error) {
	url := fmt.Sprintf("%s/extended/v1/tx/%s", c.baseURL, txid)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return reward.ChainPending, fmt.Errorf("build chain request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return reward.ChainPending, fmt.Errorf("chain request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// The node has not seen the transaction yet.
		return reward.ChainPending, nil
	}
	if resp.StatusCode != http.StatusOK {
		return reward.ChainPending, fmt.Errorf("chain status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return reward.ChainPending, fmt.Errorf("read chain response: %w", err)
	}

	switch status := gjson.GetBytes(raw, "tx_status").String(); status {
	case "success":
		return reward.ChainConfirmed, nil
	case "pending", "":
		return reward.ChainPending, nil
	default:
		// abort_by_response, abort_by_post_condition, dropped_* and friends.
		return reward.ChainFailed, nil
	}
}
