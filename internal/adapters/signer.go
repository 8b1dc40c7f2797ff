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
	"github.com/taskforge/rewards/internal/money"
	"github.com/taskforge/rewards/internal/monitoring"
	"github.com/taskforge/rewards/internal/resilience"
	"github.com/taskforge/rewards/internal/settlement"
)

// SignerAdapter implements settlement.Signer over the payment service
// that mints claimable payout permits.
type SignerAdapter struct {
	baseURL string
	token   string
	pool    *resilience.HTTPPool
	limiter *rate.Limiter
	logger  *monitoring.Logger
}

// NewSignerAdapter creates a signer client capped at rps requests per
// second.
func NewSignerAdapter(baseURL, token string, rps int, pool *resilience.HTTPPool, logger *monitoring.Logger) *SignerAdapter {
	if rps < 1 {
		rps = 1
	}
	return &SignerAdapter{
		baseURL: baseURL,
		token:   token,
		pool:    pool,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		logger:  logger,
	}
}

type signerRequest struct {
	Address  string `json:"address"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	TaskID   int64  `json:"task_id"`
	UserID   int64  `json:"user_id"`
}

// SignPayout requests one signed permit for the given recipient. The
// task and user ids key the request so a retried call yields the same
// permit instead of a second spendable one.
func (s *SignerAdapter) SignPayout(ctx context.Context, address string, amount money.Dec, currency string, taskID, userID int64) (*settlement.Permit, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(signerRequest{
		Address:  address,
		Amount:   amount.StringFixed(2),
		Currency: currency,
		TaskID:   taskID,
		UserID:   userID,
	})
	if err != nil {
		return nil, errors.NewInternalError("encode signer request", err)
	}

	headers := map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Bearer " + s.token,
	}

	start := time.Now()
	resp, err := s.pool.DoRequest(ctx, http.MethodPost, s.baseURL+"/v1/permits", headers, payload)
	if err != nil {
		s.logger.ExternalAPILogger("signer", http.MethodPost, "/v1/permits", 0, time.Since(start), false)
		return nil, errors.NewExternalAPIError("signer", err)
	}
	defer resp.Body.Close()

	ok := resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated
	s.logger.ExternalAPILogger("signer", http.MethodPost, "/v1/permits", resp.StatusCode, time.Since(start), ok)

	if !ok {
		body, _ := io.ReadAll(resp.Body)
		return nil, errors.NewExternalAPIError("signer",
			fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
	}

	var permit settlement.Permit
	if err := json.NewDecoder(resp.Body).Decode(&permit); err != nil {
		return nil, errors.NewExternalAPIError("signer", fmt.Errorf("decode permit: %w", err))
	}
	if permit.ClaimURL == "" {
		return nil, errors.NewExternalAPIError("signer", fmt.Errorf("permit without claim URL"))
	}
	return &permit, nil
}
