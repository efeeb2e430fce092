package crypto

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Well-known test vector key (hardhat account #0). Never funded on mainnet.
const testKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
const testKeyAddr = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

func TestSignerAddressDerivation(t *testing.T) {
	s, err := NewSigner(testKeyHex, 137)
	require.NoError(t, err)
	assert.Equal(t, testKeyAddr, s.Address().Hex())

	// 0x prefix is accepted.
	s2, err := NewSigner("0x"+testKeyHex, 137)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), s2.Address())
}

func TestSignerRejectsBadKey(t *testing.T) {
	_, err := NewSigner("not-hex", 137)
	assert.Error(t, err)
}

func TestSignAuthMessage(t *testing.T) {
	s, err := NewSigner(testKeyHex, 137)
	require.NoError(t, err)

	sig, err := s.SignAuthMessage(s.Address().Hex(), 1700000000, 0)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(sig, "0x"))

	raw, err := hex.DecodeString(strings.TrimPrefix(sig, "0x"))
	require.NoError(t, err)
	require.Len(t, raw, 65)
	v := raw[64]
	assert.True(t, v == 27 || v == 28, "recovery byte should be 27 or 28, got %d", v)

	// Same inputs sign deterministically.
	sig2, err := s.SignAuthMessage(s.Address().Hex(), 1700000000, 0)
	require.NoError(t, err)
	assert.Equal(t, sig, sig2)
}

func TestSignOrder(t *testing.T) {
	s, err := NewSigner(testKeyHex, 137)
	require.NoError(t, err)

	payload := OrderPayload{
		Salt:        "12345",
		Maker:       s.Address().Hex(),
		Signer:      s.Address().Hex(),
		Taker:       "0x0000000000000000000000000000000000000000",
		TokenID:     "71321045679252212594626385532706912750332728571942532289631379312455583992563",
		MakerAmount: "45000000",
		TakerAmount: "100000000",
		Expiration:  "0",
		Nonce:       "0",
		FeeRateBps:  "0",
		Side:        0,
	}

	sig, err := s.SignOrder(payload)
	require.NoError(t, err)

	raw, err := hex.DecodeString(strings.TrimPrefix(sig, "0x"))
	require.NoError(t, err)
	assert.Len(t, raw, 65)

	// Any field change must change the signature.
	payload.Side = 1
	sig2, err := s.SignOrder(payload)
	require.NoError(t, err)
	assert.NotEqual(t, sig, sig2)
}

func TestSignOrderRejectsBadAmounts(t *testing.T) {
	s, err := NewSigner(testKeyHex, 137)
	require.NoError(t, err)

	_, err = s.SignOrder(OrderPayload{Salt: "abc"})
	assert.Error(t, err)
}

func TestL2HeadersDeterministic(t *testing.T) {
	auth := &HMACAuth{
		Key:        "key-1",
		Secret:     "c2VjcmV0LWJ5dGVz", // base64("secret-bytes")
		Passphrase: "pass",
	}

	h1 := auth.L2HeadersAt(testKeyAddr, "POST", "/order", `{"a":1}`, 1700000000)
	h2 := auth.L2HeadersAt(testKeyAddr, "POST", "/order", `{"a":1}`, 1700000000)
	assert.Equal(t, h1, h2)

	assert.Equal(t, testKeyAddr, h1["POLY_ADDRESS"])
	assert.Equal(t, "key-1", h1["POLY_API_KEY"])
	assert.Equal(t, "1700000000", h1["POLY_TIMESTAMP"])
	assert.Equal(t, "pass", h1["POLY_PASSPHRASE"])
	assert.NotEmpty(t, h1["POLY_SIGNATURE"])

	// Different body must give a different signature.
	h3 := auth.L2HeadersAt(testKeyAddr, "POST", "/order", `{"a":2}`, 1700000000)
	assert.NotEqual(t, h1["POLY_SIGNATURE"], h3["POLY_SIGNATURE"])
}

func TestHMACAuthStringRedacts(t *testing.T) {
	auth := &HMACAuth{Key: "verysecretkey", Secret: "verysecretsecret"}
	s := auth.String()
	assert.NotContains(t, s, "verysecretkey")
	assert.Contains(t, s, "very****")
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	blob, err := EncryptKey("0x"+testKeyHex, "hunter2")
	require.NoError(t, err)

	got, err := DecryptKey(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)

	_, err = DecryptKey(blob, "wrong-password")
	assert.Error(t, err)
}

func TestEncryptKeyValidation(t *testing.T) {
	_, err := EncryptKey(testKeyHex, "")
	assert.Error(t, err)

	_, err = EncryptKey("zzzz", "pw")
	assert.Error(t, err)

	_, err = EncryptKey("abcd", "pw") // too short
	assert.Error(t, err)
}

func TestLoadKey(t *testing.T) {
	got, err := LoadKey(KeyConfig{RawPrivateKey: "0x" + testKeyHex})
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)

	_, err = LoadKey(KeyConfig{})
	assert.Error(t, err)

	blob, err := EncryptKey(testKeyHex, "pw")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	got, err = LoadKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "pw"})
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)
}
