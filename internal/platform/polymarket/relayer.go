package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/crypto"
	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/domain"
)

// RelayerClient submits gasless CTF operations through the Polymarket
// relayer: merging matched YES/NO pairs back into USDC and redeeming
// winning positions after resolution. The relayer executes the on-chain
// transaction so the wallet needs no POL for gas.
type RelayerClient struct {
	baseURL    string
	httpClient *http.Client
	signer     *crypto.Signer
	logger     *slog.Logger
}

// NewRelayerClient creates a relayer client. baseURL is the relayer root,
// e.g. "https://relayer-v2.polymarket.com".
func NewRelayerClient(baseURL string, signer *crypto.Signer, logger *slog.Logger) *RelayerClient {
	return &RelayerClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		signer:     signer,
		logger:     logger.With(slog.String("component", "relayer")),
	}
}

// MergePositions converts matched YES/NO share pairs for a condition back
// into USDC. shares is the number of pairs to merge; its 6-decimal integer
// form is sent on the wire. Satisfies the strategy layer's MergeFunc.
func (r *RelayerClient) MergePositions(ctx context.Context, conditionID string, shares float64) error {
	if conditionID == "" || shares <= 0 {
		return fmt.Errorf("polymarket/relayer: %w: condition=%q shares=%v",
			domain.ErrInvalidOrder, conditionID, shares)
	}

	amount := int64(math.Round(shares * usdcDecimals))
	body := map[string]any{
		"from":        r.signer.Address().Hex(),
		"type":        "MERGE",
		"conditionId": conditionID,
		"amount":      fmt.Sprintf("%d", amount),
	}

	if err := r.submit(ctx, body); err != nil {
		return fmt.Errorf("polymarket/relayer: merge %s: %w", conditionID, err)
	}

	r.logger.Info("merged pair into collateral",
		slog.String("condition_id", conditionID),
		slog.Float64("shares", shares))
	return nil
}

// RedeemPositions claims winnings for a resolved condition.
func (r *RelayerClient) RedeemPositions(ctx context.Context, conditionID string) error {
	if conditionID == "" {
		return fmt.Errorf("polymarket/relayer: %w: empty condition id", domain.ErrInvalidOrder)
	}

	body := map[string]any{
		"from":        r.signer.Address().Hex(),
		"type":        "REDEEM",
		"conditionId": conditionID,
	}

	if err := r.submit(ctx, body); err != nil {
		return fmt.Errorf("polymarket/relayer: redeem %s: %w", conditionID, err)
	}

	r.logger.Info("redeemed resolved position", slog.String("condition_id", conditionID))
	return nil
}

func (r *RelayerClient) submit(ctx context.Context, body map[string]any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/submit", bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := checkHTTPStatus(resp.StatusCode, respBody); err != nil {
		return err
	}

	var result struct {
		Success  bool   `json:"success"`
		ErrorMsg string `json:"errorMsg"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		// Some relayer deployments return the transaction hash directly.
		return nil
	}
	if !result.Success && result.ErrorMsg != "" {
		return fmt.Errorf("relayer rejected: %s", result.ErrorMsg)
	}
	return nil
}
