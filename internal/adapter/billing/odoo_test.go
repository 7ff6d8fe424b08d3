package billing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mincom-smart/chargebridge/internal/domain"
	"github.com/mincom-smart/chargebridge/internal/infrastructure/httpclient"
	"github.com/mincom-smart/chargebridge/pkg/signature"
)

const testSecret = "shared-test-secret"

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	hc := httpclient.New(httpclient.DefaultSettings("odoo-test"), zap.NewNop())
	c, err := NewClient(serverURL, testSecret, "admin-key", hc, zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	c.now = func() time.Time {
		return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	}
	return c
}

func signedAccount(t *testing.T, userID int64, key, keySalt string) domain.BillingAccount {
	t.Helper()
	salt, err := signature.NewSalt(signature.MinSaltBytes)
	if err != nil {
		t.Fatal(err)
	}
	ts := signature.Timestamp(time.Now())
	hash, err := signature.Sign(signaturePayload(key, keySalt, ts, userID, salt), testSecret)
	if err != nil {
		t.Fatal(err)
	}
	return domain.BillingAccount{
		UserID:    userID,
		PartnerID: userID + 1000,
		Key:       key,
		KeySalt:   keySalt,
		Salt:      salt,
		Timestamp: ts,
		Hash:      hash,
	}
}

func TestCreateUserVerifiesResponseHash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/internal/user/create" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer admin-key" {
			t.Errorf("Authorization = %q", got)
		}

		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req["name"] != "Jamie Fenn" || req["email"] != "jamie@example.com" {
			t.Errorf("unexpected request body %v", req)
		}

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(signedAccount(t, 42, "enc-key", "key-salt"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	acct, err := c.CreateUser(context.Background(), "Jamie Fenn", "jamie@example.com")
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if acct.UserID != 42 || acct.Key != "enc-key" || acct.KeySalt != "key-salt" {
		t.Errorf("unexpected account %+v", acct)
	}
}

func TestCreateUserRejectsTamperedHash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		acct := signedAccount(t, 42, "enc-key", "key-salt")
		acct.Key = "attacker-key"
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(acct)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.CreateUser(context.Background(), "Jamie Fenn", "jamie@example.com")
	if !domain.HasCode(err, domain.ErrDefHashVerification) {
		t.Errorf("err = %v, want hash verification failure", err)
	}
}

func TestCreateUserConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.CreateUser(context.Background(), "Jamie Fenn", "jamie@example.com")
	if !domain.HasCode(err, domain.ErrDefBillingUserExists) {
		t.Errorf("err = %v, want billing user exists", err)
	}
}

func TestRotateAPIKeySignsRequestAndVerifiesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/internal/rotate_api_key" {
			t.Errorf("path = %q", r.URL.Path)
		}

		var req struct {
			Timestamp string `json:"timestamp"`
			UserID    int64  `json:"user_id"`
			Key       string `json:"key"`
			KeySalt   string `json:"key_salt"`
			Salt      string `json:"salt"`
			Hash      string `json:"hash"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}

		msg := signaturePayload(req.Key, req.KeySalt, req.Timestamp, req.UserID, req.Salt)
		if !signature.Verify(msg, testSecret, req.Hash) {
			t.Error("request hash does not verify")
		}
		if req.Key != "old-key" || req.KeySalt != "old-salt" || req.UserID != 42 {
			t.Errorf("unexpected request %+v", req)
		}
		if req.Timestamp != "20240601T120000" {
			t.Errorf("timestamp = %q", req.Timestamp)
		}

		json.NewEncoder(w).Encode(signedAccount(t, 42, "new-key", "new-salt"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	acct, err := c.RotateAPIKey(context.Background(), 42, "old-key", "old-salt")
	if err != nil {
		t.Fatalf("RotateAPIKey() error = %v", err)
	}
	if acct.Key != "new-key" || acct.KeySalt != "new-salt" {
		t.Errorf("unexpected account %+v", acct)
	}
}

func TestRotateAPIKeyRejectsTamperedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		acct := signedAccount(t, 42, "new-key", "new-salt")
		acct.Hash = "deadbeef"
		json.NewEncoder(w).Encode(acct)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.RotateAPIKey(context.Background(), 42, "old-key", "old-salt")
	if !domain.HasCode(err, domain.ErrDefHashVerification) {
		t.Errorf("err = %v, want hash verification failure", err)
	}
}

func TestPortalLoginURL(t *testing.T) {
	c := newTestClient(t, "https://billing.example.com")

	raw, err := c.PortalLoginURL(42, "enc-key", "key-salt")
	if err != nil {
		t.Fatalf("PortalLoginURL() error = %v", err)
	}

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	if u.Path != "/portal_login" {
		t.Errorf("path = %q", u.Path)
	}

	q := u.Query()
	if q.Get("key") != "enc-key" || q.Get("key_salt") != "key-salt" {
		t.Errorf("query = %v", q)
	}
	if q.Get("timestamp") != "20240601T120000" {
		t.Errorf("timestamp = %q", q.Get("timestamp"))
	}
	if q.Get("salt") == "" {
		t.Error("salt missing")
	}

	msg := "enc-key" + "key-salt" + q.Get("timestamp") + strconv.FormatInt(42, 10) + q.Get("salt")
	if !signature.Verify(msg, testSecret, q.Get("hash")) {
		t.Error("url hash does not verify")
	}
}

func TestPortalLoginURLSaltsAreFresh(t *testing.T) {
	c := newTestClient(t, "https://billing.example.com")

	first, err := c.PortalLoginURL(42, "enc-key", "key-salt")
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.PortalLoginURL(42, "enc-key", "key-salt")
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Error("two portal links are identical, salts must be fresh")
	}
}

func TestCreateInvoiceRequiresFinishedSession(t *testing.T) {
	c := newTestClient(t, "https://billing.example.com")

	_, err := c.CreateInvoice(context.Background(), &domain.ChargingTransaction{SteveID: 1}, 42)
	if !domain.HasCode(err, domain.ErrDefInvalidParameters) {
		t.Errorf("err = %v, want invalid parameters", err)
	}
}

func TestCreateInvoiceReturnsReference(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/internal/bill/create" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req["user_id"].(float64) != 42 {
			t.Errorf("user_id = %v", req["user_id"])
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"invoice_ref": "INV-2024-0042"})
	}))
	defer srv.Close()

	stop := time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)
	stopValue := 2500.0
	txn := &domain.ChargingTransaction{
		SteveID:        101,
		StartTimestamp: stop.Add(-time.Hour),
		StopTimestamp:  &stop,
		StartValue:     1000,
		StopValue:      &stopValue,
	}

	c := newTestClient(t, srv.URL)
	ref, err := c.CreateInvoice(context.Background(), txn, 42)
	if err != nil {
		t.Fatalf("CreateInvoice() error = %v", err)
	}
	if ref != "INV-2024-0042" {
		t.Errorf("ref = %q", ref)
	}
}
