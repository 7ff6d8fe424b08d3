// Package billing implements the client for the Odoo backend's internal
// API. Every handshake that carries credential material is authenticated by
// an HMAC over the fixed field order key+key_salt+timestamp+user_id+salt;
// responses are verified before any field is trusted.
package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mincom-smart/chargebridge/internal/domain"
	"github.com/mincom-smart/chargebridge/internal/infrastructure/httpclient"
	"github.com/mincom-smart/chargebridge/pkg/signature"
)

const (
	userCreatePath    = "/internal/user/create"
	invoiceCreatePath = "/internal/bill/create"
	rotateKeyPath     = "/internal/rotate_api_key"
	portalLoginPath   = "/portal_login"
)

type Client struct {
	baseURL     *url.URL
	secret      string // shared signing secret, never transmitted
	adminAPIKey string
	http        *httpclient.Client
	log         *zap.Logger
	now         func() time.Time
}

func NewClient(baseURL, secret, adminAPIKey string, hc *httpclient.Client, log *zap.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("billing: invalid base url: %w", err)
	}
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("billing: signing secret must not be blank")
	}
	return &Client{
		baseURL:     u,
		secret:      secret,
		adminAPIKey: adminAPIKey,
		http:        hc,
		log:         log,
		now:         time.Now,
	}, nil
}

// signaturePayload concatenates the signed fields in the order agreed with
// the billing backend. The order is part of the protocol.
func signaturePayload(key, keySalt, timestamp string, userID int64, salt string) string {
	return key + keySalt + timestamp + strconv.FormatInt(userID, 10) + salt
}

func (c *Client) verifyAccount(acct *domain.BillingAccount) error {
	msg := signaturePayload(acct.Key, acct.KeySalt, acct.Timestamp, acct.UserID, acct.Salt)
	if !signature.Verify(msg, c.secret, acct.Hash) {
		return domain.NewSystemError(domain.ErrDefHashVerification, "", nil)
	}
	return nil
}

// CreateUser provisions a billing account for name/email. The 201 response
// is hash-verified before its credential material is returned.
func (c *Client) CreateUser(ctx context.Context, name, email string) (*domain.BillingAccount, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(email) == "" {
		return nil, domain.NewValidationError(domain.ErrDefMissingParameters, "name and email are required")
	}

	resp, err := c.post(ctx, userCreatePath, map[string]string{
		"name":  name,
		"email": email,
	})
	if err != nil {
		return nil, domain.NewSystemError(domain.ErrDefBillingCreateFailed, "", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		var acct domain.BillingAccount
		if err := json.NewDecoder(resp.Body).Decode(&acct); err != nil {
			return nil, domain.NewSystemError(domain.ErrDefBillingCreateFailed, "malformed response", err)
		}
		if err := c.verifyAccount(&acct); err != nil {
			return nil, err
		}
		return &acct, nil
	case http.StatusConflict:
		return nil, domain.NewSystemError(domain.ErrDefBillingUserExists, "", nil)
	default:
		return nil, domain.NewSystemError(domain.ErrDefBillingCreateFailed, c.errorBody(resp), nil)
	}
}

// CreateInvoice bills a finished session and returns the invoice reference.
func (c *Client) CreateInvoice(ctx context.Context, txn *domain.ChargingTransaction, odooUserID int64) (string, error) {
	if txn == nil || !txn.Final() {
		return "", domain.NewValidationError(domain.ErrDefInvalidParameters, "only finished sessions can be invoiced")
	}

	payload := map[string]interface{}{
		"user_id":         odooUserID,
		"transaction_id":  txn.SteveID,
		"start_timestamp": txn.StartTimestamp.UTC().Format(time.RFC3339),
		"stop_timestamp":  txn.StopTimestamp.UTC().Format(time.RFC3339),
		"energy_wh":       txn.EnergyWh(),
	}

	resp, err := c.post(ctx, invoiceCreatePath, payload)
	if err != nil {
		return "", domain.NewSystemError(domain.ErrDefInvoiceCreateFailed, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", domain.NewSystemError(domain.ErrDefInvoiceCreateFailed, c.errorBody(resp), nil)
	}

	var body struct {
		InvoiceRef string `json:"invoice_ref"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", domain.NewSystemError(domain.ErrDefInvoiceCreateFailed, "malformed response", err)
	}
	if body.InvoiceRef == "" {
		return "", domain.NewSystemError(domain.ErrDefInvoiceCreateFailed, "response missing invoice_ref", nil)
	}
	return body.InvoiceRef, nil
}

// RotateAPIKey sends the signed rotation handshake: current key material, a
// fresh nonce salt, a timestamp, and our signature. The response is verified
// against the same composition before the replacement material is returned.
func (c *Client) RotateAPIKey(ctx context.Context, odooUserID int64, currentKey, currentKeySalt string) (*domain.BillingAccount, error) {
	salt, err := signature.NewSalt(signature.MinSaltBytes)
	if err != nil {
		return nil, domain.NewSystemError(domain.ErrDefRotationFailed, "salt generation failed", err)
	}
	ts := signature.Timestamp(c.now())

	hash, err := signature.Sign(signaturePayload(currentKey, currentKeySalt, ts, odooUserID, salt), c.secret)
	if err != nil {
		return nil, domain.NewSystemError(domain.ErrDefRotationFailed, "", err)
	}

	resp, err := c.post(ctx, rotateKeyPath, map[string]interface{}{
		"timestamp": ts,
		"user_id":   odooUserID,
		"key":       currentKey,
		"key_salt":  currentKeySalt,
		"salt":      salt,
		"hash":      hash,
	})
	if err != nil {
		return nil, domain.NewSystemError(domain.ErrDefRotationFailed, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewSystemError(domain.ErrDefRotationFailed, c.errorBody(resp), nil)
	}

	var acct domain.BillingAccount
	if err := json.NewDecoder(resp.Body).Decode(&acct); err != nil {
		return nil, domain.NewSystemError(domain.ErrDefRotationFailed, "malformed response", err)
	}
	if err := c.verifyAccount(&acct); err != nil {
		return nil, err
	}
	return &acct, nil
}

// PortalLoginURL builds the signed redirect URL for the billing portal. Each
// link carries a fresh salt and timestamp, so links are single-purpose and
// the portal can bound their freshness.
func (c *Client) PortalLoginURL(odooUserID int64, key, keySalt string) (string, error) {
	if strings.TrimSpace(key) == "" || strings.TrimSpace(keySalt) == "" {
		return "", domain.NewValidationError(domain.ErrDefNoCredentials, "")
	}

	salt, err := signature.NewSalt(signature.MinSaltBytes)
	if err != nil {
		return "", domain.NewSystemError(domain.ErrDefUnknown, "salt generation failed", err)
	}
	ts := signature.Timestamp(c.now())

	hash, err := signature.Sign(signaturePayload(key, keySalt, ts, odooUserID, salt), c.secret)
	if err != nil {
		return "", domain.NewSystemError(domain.ErrDefUnknown, "", err)
	}

	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + portalLoginPath
	q := url.Values{}
	q.Set("key", key)
	q.Set("key_salt", keySalt)
	q.Set("salt", salt)
	q.Set("timestamp", ts)
	q.Set("hash", hash)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// Ping checks the backend is reachable. Odoo has no dedicated probe
// endpoint, so reachability of the root is the best available signal.
func (c *Client) Ping(ctx context.Context) error {
	u := *c.baseURL
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.adminAPIKey)
	return c.http.Do(req)
}

func (c *Client) errorBody(resp *http.Response) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error == "" {
		return fmt.Sprintf("billing backend returned %d", resp.StatusCode)
	}
	return body.Error
}
