package alert

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/secaudit/secaudit/internal/scanner"
)

const (
	maxRetries = 3
	baseDelay  = 500 * time.Millisecond
	nonceSize  = 32
)

// Webhook posts scan summaries to a CI/chat endpoint, signed with
// HMAC-SHA256 so receivers can verify origin.
type Webhook struct {
	url    string
	secret []byte
	client *http.Client
}

func NewWebhook(url, secret string) *Webhook {
	return &Webhook{
		url:    url,
		secret: []byte(secret),
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Payload is the webhook body. Signature covers every other field.
type Payload struct {
	RunID       string          `json:"run_id"`
	RootPath    string          `json:"root_path"`
	Summary     scanner.Summary `json:"summary"`
	Issues      []scanner.Issue `json:"issues"`
	GeneratedAt time.Time       `json:"generated_at"`
	Nonce       string          `json:"nonce"`
	Signature   *Signature      `json:"signature,omitempty"`
}

// Signature is the detached HMAC over the payload.
type Signature struct {
	Algorithm string `json:"alg"`
	Value     string `json:"sig"`
}

// NewPayload builds a webhook payload from a scan result.
func NewPayload(result *scanner.ScanResult) *Payload {
	return &Payload{
		RunID:       fmt.Sprintf("run-%d", time.Now().Unix()),
		RootPath:    result.RootPath,
		Summary:     result.Summary(),
		Issues:      result.Issues,
		GeneratedAt: time.Now().UTC(),
	}
}

// Send signs and posts the payload, retrying transient failures with
// linear backoff.
func (w *Webhook) Send(payload *Payload) error {
	nonce, err := generateNonce()
	if err != nil {
		return err
	}
	payload.Nonce = nonce

	sig, err := w.sign(payload)
	if err != nil {
		return fmt.Errorf("failed to sign payload: %w", err)
	}
	payload.Signature = sig

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		req, err := http.NewRequest(http.MethodPost, w.url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Secaudit-Signature", sig.Value)

		resp, err := w.client.Do(req)
		if err != nil {
			lastErr = err
			sleepBeforeRetry(i)
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		lastErr = fmt.Errorf("server returned status %d", resp.StatusCode)
		sleepBeforeRetry(i)
	}

	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

// sleepBeforeRetry backs off linearly between attempts. The last
// attempt returns immediately; there is nothing left to wait for.
func sleepBeforeRetry(attempt int) {
	if attempt < maxRetries-1 {
		time.Sleep(time.Duration(attempt+1) * baseDelay)
	}
}

// sign computes the HMAC-SHA256 signature over the payload with its
// Signature field cleared.
func (w *Webhook) sign(payload *Payload) (*Signature, error) {
	orig := payload.Signature
	payload.Signature = nil
	data, err := json.Marshal(payload)
	payload.Signature = orig
	if err != nil {
		return nil, err
	}

	mac := hmac.New(sha256.New, w.secret)
	mac.Write(data)
	return &Signature{
		Algorithm: "HMAC-SHA256",
		Value:     base64.StdEncoding.EncodeToString(mac.Sum(nil)),
	}, nil
}

// Verify checks a received payload's signature. Exported for receivers
// and tests.
func (w *Webhook) Verify(payload *Payload) error {
	if payload.Signature == nil {
		return fmt.Errorf("no signature provided")
	}
	if payload.Signature.Algorithm != "HMAC-SHA256" {
		return fmt.Errorf("unsupported signature algorithm: %s", payload.Signature.Algorithm)
	}

	expected, err := w.sign(payload)
	if err != nil {
		return err
	}
	if !hmac.Equal([]byte(payload.Signature.Value), []byte(expected.Value)) {
		return fmt.Errorf("signature verification failed")
	}
	return nil
}

func generateNonce() (string, error) {
	buf := make([]byte, nonceSize)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
