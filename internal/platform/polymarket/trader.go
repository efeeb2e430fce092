package polymarket

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math"
	"math/big"

	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/crypto"
	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/domain"
)

// usdcDecimals is the fixed-point scale of USDC and outcome token amounts.
const usdcDecimals = 1e6

// Trader turns trade signals into signed CLOB orders. It implements the
// executor's OrderPlacer and BalanceSource ports.
type Trader struct {
	clob          *ClobClient
	signer        *crypto.Signer
	wallet        string
	signatureType int
	logger        *slog.Logger
}

// NewTrader creates a Trader placing orders for the signer's wallet.
func NewTrader(clob *ClobClient, signer *crypto.Signer, signatureType int, logger *slog.Logger) *Trader {
	return &Trader{
		clob:          clob,
		signer:        signer,
		wallet:        signer.Address().Hex(),
		signatureType: signatureType,
		logger:        logger.With(slog.String("component", "trader")),
	}
}

// PlaceOrder builds, signs, and submits a fill-and-kill order for the signal.
func (t *Trader) PlaceOrder(ctx context.Context, sig domain.TradeSignal) (domain.OrderResult, error) {
	order, err := t.buildOrder(sig)
	if err != nil {
		return domain.OrderResult{}, err
	}

	t.logger.Debug("placing order",
		slog.String("signal_id", sig.ID),
		slog.String("token_id", sig.TokenID),
		slog.String("side", string(sig.Side)),
		slog.Float64("price", sig.TargetPrice),
		slog.Float64("shares", sig.Shares))

	return t.clob.PostOrder(ctx, order)
}

// Balance returns the wallet's available USDC.
func (t *Trader) Balance(ctx context.Context) (float64, error) {
	return t.clob.CollateralBalance(ctx)
}

// buildOrder converts a signal into a signed domain.Order. Amounts are
// 6-decimal integers: a buy spends USDC (maker) for shares (taker), a sell
// is the reverse.
func (t *Trader) buildOrder(sig domain.TradeSignal) (domain.Order, error) {
	if sig.TokenID == "" || sig.TargetPrice <= 0 || sig.Shares <= 0 {
		return domain.Order{}, fmt.Errorf("polymarket/trader: %w: token=%q price=%v shares=%v",
			domain.ErrInvalidOrder, sig.TokenID, sig.TargetPrice, sig.Shares)
	}

	shares := scaleAmount(sig.Shares)
	notional := scaleAmount(sig.TargetPrice * sig.Shares)

	var maker, taker *big.Int
	var payloadSide int
	if sig.Side == domain.OrderSideSell {
		maker, taker = shares, notional
		payloadSide = 1
	} else {
		maker, taker = notional, shares
		payloadSide = 0
	}

	salt, err := newSalt()
	if err != nil {
		return domain.Order{}, fmt.Errorf("polymarket/trader: salt: %w", err)
	}

	payload := crypto.OrderPayload{
		Salt:          salt,
		Maker:         t.wallet,
		Signer:        t.wallet,
		Taker:         "0x0000000000000000000000000000000000000000",
		TokenID:       sig.TokenID,
		MakerAmount:   maker.String(),
		TakerAmount:   taker.String(),
		Expiration:    "0",
		Nonce:         "0",
		FeeRateBps:    "0",
		Side:          payloadSide,
		SignatureType: t.signatureType,
	}

	signature, err := t.signer.SignOrder(payload)
	if err != nil {
		return domain.Order{}, fmt.Errorf("polymarket/trader: %w: %v", domain.ErrSigningFailed, err)
	}

	return domain.Order{
		MarketID:      sig.MarketID,
		TokenID:       sig.TokenID,
		Wallet:        t.wallet,
		Side:          sig.Side,
		Type:          domain.OrderTypeFAK,
		Price:         sig.TargetPrice,
		Size:          sig.Shares,
		MakerAmount:   maker,
		TakerAmount:   taker,
		Salt:          salt,
		SignatureType: t.signatureType,
		Signature:     signature,
		SignalID:      sig.ID,
		RoundID:       sig.RoundID,
	}, nil
}

// scaleAmount converts a float amount to a 6-decimal integer, rounding to
// the nearest unit.
func scaleAmount(v float64) *big.Int {
	return big.NewInt(int64(math.Round(v * usdcDecimals)))
}

// newSalt returns a random uint64 as a decimal string.
func newSalt() (string, error) {
	max := new(big.Int).Lsh(big.NewInt(1), 64)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return n.String(), nil
}
