package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/taksu/adapters/challenge"
	"github.com/layer-3/taksu/adapters/store"
	"github.com/layer-3/taksu/internal/eth"
	"github.com/layer-3/taksu/ports"
	"github.com/layer-3/taksu/verifier"
)

type nopPublisher struct{}

func (nopPublisher) PublishAuthenticated(ctx context.Context, address common.Address, nonce string) error {
	return nil
}

func (nopPublisher) PublishRejected(ctx context.Context, address, reason string) error {
	return nil
}

type brokenIssuer struct{ err error }

func (i brokenIssuer) Issue(ctx context.Context) (string, error)              { return "", i.err }
func (i brokenIssuer) Redeem(ctx context.Context, nonce string) (bool, error) { return false, i.err }

func newRouter(t *testing.T, issuer ports.ChallengeIssuer) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc := verifier.NewService(issuer, nopPublisher{}, zerolog.Nop())
	return SetupRouter(svc, zerolog.Nop())
}

func liveRouter(t *testing.T) *gin.Engine {
	return newRouter(t, challenge.NewRandomIssuer(store.NewMemoryStore(), time.Minute))
}

func perform(router *gin.Engine, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func verifyTarget(message, address, signature string) string {
	params := url.Values{}
	params.Set("message", message)
	params.Set("address", address)
	params.Set("signature", signature)
	return "/metamask/verify/message?" + params.Encode()
}

func TestHealthz(t *testing.T) {
	rec := perform(liveRouter(t), "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestGenerateNonceEndpoint(t *testing.T) {
	rec := perform(liveRouter(t), "/metamask/generatenonce")

	require.Equal(t, http.StatusOK, rec.Code)
	nonce, ok := decode(t, rec)["nonce"].(string)
	require.True(t, ok)
	assert.Len(t, nonce, 64)
}

func TestGenerateNonceFailure(t *testing.T) {
	rec := perform(newRouter(t, brokenIssuer{err: errors.New("store down")}), "/metamask/generatenonce")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to generate nonce", decode(t, rec)["error"])
}

func TestVerifyHandshake(t *testing.T) {
	router := liveRouter(t)

	rec := perform(router, "/metamask/generatenonce")
	require.Equal(t, http.StatusOK, rec.Code)
	nonce := decode(t, rec)["nonce"].(string)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	addr := crypto.PubkeyToAddress(key.PublicKey)
	sig, err := eth.Sign([]byte(nonce), key)
	require.NoError(t, err)

	target := verifyTarget(nonce, addr.Hex(), hexutil.Encode(sig))
	rec = perform(router, target)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["valid"])

	rec = perform(router, target)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["valid"], "a nonce is spent on first presentation")
}

func TestVerifyWrongSigner(t *testing.T) {
	router := liveRouter(t)

	rec := perform(router, "/metamask/generatenonce")
	nonce := decode(t, rec)["nonce"].(string)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	sig, err := eth.Sign([]byte(nonce), key)
	require.NoError(t, err)

	claimed := common.HexToAddress("0x3333333333333333333333333333333333333333")
	rec = perform(router, verifyTarget(nonce, claimed.Hex(), hexutil.Encode(sig)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["valid"])
}

func TestVerifyMissingParams(t *testing.T) {
	router := liveRouter(t)

	for _, target := range []string{
		"/metamask/verify/message",
		verifyTarget("", "0x3333333333333333333333333333333333333333", "0xsig"),
		verifyTarget("nonce", "", "0xsig"),
		verifyTarget("nonce", "0x3333333333333333333333333333333333333333", ""),
	} {
		rec := perform(router, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Equal(t, false, decode(t, rec)["valid"], target)
	}
}

func TestVerifyInternalFailure(t *testing.T) {
	router := newRouter(t, brokenIssuer{err: errors.New("redis down")})

	rec := perform(router, verifyTarget("nonce", "0x3333333333333333333333333333333333333333", "0x00"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Verification failed", decode(t, rec)["error"])
}
