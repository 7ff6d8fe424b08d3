// Package chargepoint implements the client for the SteVe OCPP backend's
// REST API: STOPPED transaction retrieval and ocppTags management.
package chargepoint

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
)

const (
	ocppTagsPath     = "/api/v1/ocppTags"
	transactionsPath = "/api/v1/transactions"

	// SteVe expects local-less ISO timestamps, always UTC.
	steveTimeLayout = "2006-01-02T15:04:05"

	createdTagNote = "User created by chargebridge"
)

type Client struct {
	baseURL  *url.URL
	username string
	password string
	http     *httpclient.Client
	log      *zap.Logger
}

func NewClient(baseURL, username, password string, hc *httpclient.Client, log *zap.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("chargepoint: invalid base url: %w", err)
	}
	return &Client{
		baseURL:  u,
		username: username,
		password: password,
		http:     hc,
		log:      log,
	}, nil
}

// FetchStopped returns STOPPED sessions. A nil from fetches the complete
// history (periodType ALL); otherwise the window [from, to] is requested
// and the caller's +1s offset makes it effectively half-open.
func (c *Client) FetchStopped(ctx context.Context, from *time.Time, to time.Time) ([]domain.StoppedSession, error) {
	params := url.Values{}
	params.Set("type", "STOPPED")
	if from != nil {
		params.Set("periodType", "FROM_TO")
		params.Set("from", from.UTC().Format(steveTimeLayout))
		params.Set("to", to.UTC().Format(steveTimeLayout))
	} else {
		params.Set("periodType", "ALL")
	}

	resp, err := c.get(ctx, transactionsPath, params)
	if err != nil {
		return nil, domain.NewSystemError(domain.ErrDefFetchFailed, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewSystemError(domain.ErrDefFetchFailed,
			fmt.Sprintf("charge-point backend returned %d", resp.StatusCode), nil)
	}

	var sessions []domain.StoppedSession
	if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil {
		return nil, domain.NewSystemError(domain.ErrDefFetchFailed, "malformed transaction list", err)
	}
	return sessions, nil
}

// GetTag looks up a tag by id tag. Zero results return (nil, nil); more
// than one is an invariant violation of the backend.
func (c *Client) GetTag(ctx context.Context, idTag string) (*domain.OcppTag, error) {
	if strings.TrimSpace(idTag) == "" {
		return nil, domain.NewValidationError(domain.ErrDefInvalidParameters, "idTag must not be blank")
	}

	params := url.Values{}
	params.Set("idTag", idTag)

	resp, err := c.get(ctx, ocppTagsPath, params)
	if err != nil {
		return nil, domain.NewSystemError(domain.ErrDefServiceUnavailable, "charge-point backend unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewSystemError(domain.ErrDefServiceUnavailable,
			fmt.Sprintf("tag lookup returned %d", resp.StatusCode), nil)
	}

	var tags []domain.OcppTag
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, domain.NewSystemError(domain.ErrDefInvalidFormat, "malformed tag response", err)
	}

	switch len(tags) {
	case 0:
		return nil, nil
	case 1:
		if err := validateTagEcho(&tags[0], idTag); err != nil {
			return nil, err
		}
		return &tags[0], nil
	default:
		return nil, domain.NewSystemError(domain.ErrDefTagNotUnique,
			fmt.Sprintf("%d tags returned for idTag %q", len(tags), idTag), nil)
	}
}

// CreateTag provisions a new tag. New users are created blocked by default
// pending activation; the echoed tag and block state are verified before
// the result is trusted.
func (c *Client) CreateTag(ctx context.Context, idTag string, blocked bool) (*domain.OcppTag, error) {
	if strings.TrimSpace(idTag) == "" {
		return nil, domain.NewValidationError(domain.ErrDefInvalidParameters, "idTag must not be blank")
	}

	body := map[string]interface{}{
		"idTag":                     idTag,
		"maxActiveTransactionCount": maxActive(blocked),
		"note":                      createdTagNote,
	}

	resp, err := c.send(ctx, http.MethodPost, ocppTagsPath, body)
	if err != nil {
		return nil, domain.NewSystemError(domain.ErrDefTagCreateFailed, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, domain.NewSystemError(domain.ErrDefTagCreateFailed,
			fmt.Sprintf("charge-point backend returned %d", resp.StatusCode), nil)
	}

	var tag domain.OcppTag
	if err := json.NewDecoder(resp.Body).Decode(&tag); err != nil {
		return nil, domain.NewSystemError(domain.ErrDefInvalidFormat, "malformed tag response", err)
	}
	if err := validateTagEcho(&tag, idTag); err != nil {
		return nil, err
	}
	if err := validateTagState(&tag, blocked); err != nil {
		return nil, err
	}
	return &tag, nil
}

// SetTagBlocked updates a tag's block state and verifies the backend
// actually applied it.
func (c *Client) SetTagBlocked(ctx context.Context, tagPk int64, idTag string, blocked bool) (*domain.OcppTag, error) {
	if strings.TrimSpace(idTag) == "" {
		return nil, domain.NewValidationError(domain.ErrDefInvalidParameters, "idTag must not be blank")
	}

	body := map[string]interface{}{
		"idTag":                     idTag,
		"maxActiveTransactionCount": maxActive(blocked),
	}

	path := ocppTagsPath + "/" + strconv.FormatInt(tagPk, 10)
	resp, err := c.send(ctx, http.MethodPut, path, body)
	if err != nil {
		return nil, domain.NewSystemError(domain.ErrDefServiceUnavailable, "charge-point backend unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewSystemError(domain.ErrDefTagStateMismatch,
			fmt.Sprintf("block update returned %d", resp.StatusCode), nil)
	}

	var tag domain.OcppTag
	if err := json.NewDecoder(resp.Body).Decode(&tag); err != nil {
		return nil, domain.NewSystemError(domain.ErrDefInvalidFormat, "malformed tag response", err)
	}
	if err := validateTagEcho(&tag, idTag); err != nil {
		return nil, err
	}
	if err := validateTagState(&tag, blocked); err != nil {
		return nil, err
	}
	return &tag, nil
}

// Ping probes connectivity with a throwaway lookup, mirroring the probe the
// backend tolerates at boot.
func (c *Client) Ping(ctx context.Context) error {
	params := url.Values{}
	params.Set("idTag", "NETWORK_TEST")
	resp, err := c.get(ctx, ocppTagsPath, params)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("chargepoint: ping returned %d", resp.StatusCode)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) (*http.Response, error) {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Content-Type", "application/json")
	return c.http.Do(req)
}

func (c *Client) send(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Content-Type", "application/json")
	return c.http.Do(req)
}

func maxActive(blocked bool) int {
	if blocked {
		return 0
	}
	return 1
}

// validateTagEcho guards against cross-talk: the backend must echo exactly
// the id tag that was requested.
func validateTagEcho(tag *domain.OcppTag, idTag string) error {
	if tag.OcppTagPk <= 0 {
		return domain.NewValidationError(domain.ErrDefInvalidFormat, "tag response missing ocppTagPk")
	}
	if tag.IDTag != idTag {
		return domain.NewValidationError(domain.ErrDefEchoMismatch,
			fmt.Sprintf("id tag mismatch: expected %q, got %q", idTag, tag.IDTag))
	}
	return nil
}

func validateTagState(tag *domain.OcppTag, blocked bool) error {
	if tag.Blocked != blocked || tag.MaxActiveTransactionCount != maxActive(blocked) {
		return domain.NewSystemError(domain.ErrDefTagStateMismatch,
			fmt.Sprintf("requested blocked=%t, backend reports blocked=%t maxActiveTransactionCount=%d",
				blocked, tag.Blocked, tag.MaxActiveTransactionCount), nil)
	}
	return nil
}
