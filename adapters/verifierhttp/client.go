// Package verifierhttp is the REST client for the verifier backend.
package verifierhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/layer-3/taksu/ports"
)

type nonceResponse struct {
	Nonce string `json:"nonce"`
}

type verifyResponse struct {
	Valid bool `json:"valid"`
}

// Client wraps the verifier's two REST endpoints.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a verifier client for the given base URL.
func NewClient(baseURL string) ports.Verifier {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// GenerateNonce wraps GET /metamask/generatenonce. The nonce comes back
// verbatim; judging an empty one is the caller's business.
func (c *Client) GenerateNonce(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/metamask/generatenonce", nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("generate nonce: status %d: %s", resp.StatusCode, body)
	}

	var out nonceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode nonce response: %w", err)
	}
	return out.Nonce, nil
}

// VerifyMessage wraps GET /metamask/verify/message. A 400 still carries a
// verdict (malformed input is just an invalid signature); other non-200
// answers are errors.
func (c *Client) VerifyMessage(ctx context.Context, message string, address common.Address, signature []byte) (bool, error) {
	params := url.Values{}
	params.Set("message", message)
	params.Set("address", address.Hex())
	params.Set("signature", hexutil.Encode(signature))

	endpoint := c.baseURL + "/metamask/verify/message?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("verify message: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusBadRequest {
		var out verifyResponse
		if err := json.Unmarshal(bodyBytes, &out); err != nil {
			return false, fmt.Errorf("decode verify response: %w", err)
		}
		return out.Valid, nil
	}

	return false, fmt.Errorf("verify message: status %d: %s", resp.StatusCode, bodyBytes)
}
