package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/taskforge/rewards/internal/errors"
	"github.com/taskforge/rewards/internal/monitoring"
	"github.com/taskforge/rewards/internal/relevance"
	"github.com/taskforge/rewards/internal/resilience"
)

// tierModels maps the capacity tier onto the oracle's model names.
var tierModels = map[relevance.Tier]string{
	relevance.TierSmall:  "classifier-small",
	relevance.TierMedium: "classifier-medium",
	relevance.TierLarge:  "classifier-large",
}

// OracleAdapter implements relevance.Oracle over the classifier HTTP API.
// Calls are rate-limited client-side: the sampler fans out identical
// requests, and blowing the provider's quota turns every sample in a
// batch into a failure at once.
type OracleAdapter struct {
	baseURL string
	token   string
	pool    *resilience.HTTPPool
	limiter *rate.Limiter
	logger  *monitoring.Logger
}

// NewOracleAdapter creates an oracle client capped at rps requests per
// second with a burst of rps.
func NewOracleAdapter(baseURL, token string, rps int, pool *resilience.HTTPPool, logger *monitoring.Logger) *OracleAdapter {
	if rps < 1 {
		rps = 1
	}
	return &OracleAdapter{
		baseURL: baseURL,
		token:   token,
		pool:    pool,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		logger:  logger,
	}
}

type oracleRequest struct {
	Model         string   `json:"model"`
	Specification string   `json:"specification"`
	Comments      []string `json:"comments"`
}

type oracleResponse struct {
	Scores []float64 `json:"scores"`
}

// ScoreRelevance asks the classifier for one score per comment.
func (o *OracleAdapter) ScoreRelevance(ctx context.Context, tier relevance.Tier, specification string, comments []string) ([]float64, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(oracleRequest{
		Model:         tierModels[tier],
		Specification: specification,
		Comments:      comments,
	})
	if err != nil {
		return nil, errors.NewInternalError("encode oracle request", err)
	}

	headers := map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Bearer " + o.token,
	}

	start := time.Now()
	resp, err := o.pool.DoRequest(ctx, http.MethodPost, o.baseURL+"/v1/relevance", headers, payload)
	if err != nil {
		o.logger.ExternalAPILogger("oracle", http.MethodPost, "/v1/relevance", 0, time.Since(start), false)
		return nil, errors.NewExternalAPIError("oracle", err)
	}
	defer resp.Body.Close()

	o.logger.ExternalAPILogger("oracle", http.MethodPost, "/v1/relevance", resp.StatusCode, time.Since(start), resp.StatusCode == http.StatusOK)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, errors.NewExternalAPIError("oracle",
			fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
	}

	var decoded oracleResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, errors.NewExternalAPIError("oracle", fmt.Errorf("decode response: %w", err))
	}
	return decoded.Scores, nil
}
