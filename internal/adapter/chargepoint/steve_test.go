package chargepoint

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mincom-smart/chargebridge/internal/domain"
	"github.com/mincom-smart/chargebridge/internal/infrastructure/httpclient"
)

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	hc := httpclient.New(httpclient.DefaultSettings("steve-test"), zap.NewNop())
	c, err := NewClient(serverURL, "steve-user", "steve-pass", hc, zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func TestFetchStoppedFullHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/transactions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "steve-user" || pass != "steve-pass" {
			t.Error("missing or wrong basic auth")
		}

		q := r.URL.Query()
		if q.Get("type") != "STOPPED" {
			t.Errorf("type = %q", q.Get("type"))
		}
		if q.Get("periodType") != "ALL" {
			t.Errorf("periodType = %q, want ALL", q.Get("periodType"))
		}
		if q.Get("from") != "" || q.Get("to") != "" {
			t.Error("full history fetch must not set from/to")
		}

		json.NewEncoder(w).Encode([]domain.StoppedSession{
			{ID: 101, OcppTagPk: 7, OcppIDTag: "TAG-A", StartTimestamp: "2024-01-01T09:00:00", StopTimestamp: "2024-01-01T10:00:00", StartValue: "0", StopValue: "1000"},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	sessions, err := c.FetchStopped(context.Background(), nil, time.Now())
	if err != nil {
		t.Fatalf("FetchStopped() error = %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != 101 {
		t.Errorf("sessions = %+v", sessions)
	}
}

func TestFetchStoppedWindow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("periodType") != "FROM_TO" {
			t.Errorf("periodType = %q, want FROM_TO", q.Get("periodType"))
		}
		if q.Get("from") != "2024-01-01T10:00:01" {
			t.Errorf("from = %q", q.Get("from"))
		}
		if q.Get("to") != "2024-01-02T00:00:00" {
			t.Errorf("to = %q", q.Get("to"))
		}
		json.NewEncoder(w).Encode([]domain.StoppedSession{})
	}))
	defer srv.Close()

	from := time.Date(2024, 1, 1, 10, 0, 1, 0, time.UTC)
	to := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	c := newTestClient(t, srv.URL)
	sessions, err := c.FetchStopped(context.Background(), &from, to)
	if err != nil {
		t.Fatalf("FetchStopped() error = %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("sessions = %+v", sessions)
	}
}

func TestGetTagAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("idTag"); got != "TAG-A" {
			t.Errorf("idTag = %q", got)
		}
		json.NewEncoder(w).Encode([]domain.OcppTag{})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	tag, err := c.GetTag(context.Background(), "TAG-A")
	if err != nil {
		t.Fatalf("GetTag() error = %v", err)
	}
	if tag != nil {
		t.Errorf("tag = %+v, want nil", tag)
	}
}

func TestGetTagRejectsMultipleMatches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]domain.OcppTag{
			{OcppTagPk: 1, IDTag: "TAG-A"},
			{OcppTagPk: 2, IDTag: "TAG-A"},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.GetTag(context.Background(), "TAG-A")
	if !domain.HasCode(err, domain.ErrDefTagNotUnique) {
		t.Errorf("err = %v, want tag not unique", err)
	}
}

func TestCreateTagBlockedByDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %q", r.Method)
		}
		var req map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req["maxActiveTransactionCount"].(float64) != 0 {
			t.Errorf("maxActiveTransactionCount = %v, want 0", req["maxActiveTransactionCount"])
		}

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(domain.OcppTag{
			OcppTagPk: 9, IDTag: "TAG-A", Blocked: true, MaxActiveTransactionCount: 0,
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	tag, err := c.CreateTag(context.Background(), "TAG-A", true)
	if err != nil {
		t.Fatalf("CreateTag() error = %v", err)
	}
	if tag.OcppTagPk != 9 || !tag.Blocked {
		t.Errorf("tag = %+v", tag)
	}
}

func TestCreateTagRejectsEchoMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(domain.OcppTag{
			OcppTagPk: 9, IDTag: "OTHER-TAG", Blocked: true, MaxActiveTransactionCount: 0,
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.CreateTag(context.Background(), "TAG-A", true)
	if !domain.HasCode(err, domain.ErrDefEchoMismatch) {
		t.Errorf("err = %v, want echo mismatch", err)
	}
}

func TestCreateTagRejectsStateMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(domain.OcppTag{
			OcppTagPk: 9, IDTag: "TAG-A", Blocked: false, MaxActiveTransactionCount: 1,
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.CreateTag(context.Background(), "TAG-A", true)
	if !domain.HasCode(err, domain.ErrDefTagStateMismatch) {
		t.Errorf("err = %v, want tag state mismatch", err)
	}
}

func TestSetTagBlockedTranslatesState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %q", r.Method)
		}
		if r.URL.Path != "/api/v1/ocppTags/9" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req["maxActiveTransactionCount"].(float64) != 1 {
			t.Errorf("maxActiveTransactionCount = %v, want 1", req["maxActiveTransactionCount"])
		}
		json.NewEncoder(w).Encode(domain.OcppTag{
			OcppTagPk: 9, IDTag: "TAG-A", Blocked: false, MaxActiveTransactionCount: 1,
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	tag, err := c.SetTagBlocked(context.Background(), 9, "TAG-A", false)
	if err != nil {
		t.Fatalf("SetTagBlocked() error = %v", err)
	}
	if tag.Blocked {
		t.Errorf("tag still blocked: %+v", tag)
	}
}
