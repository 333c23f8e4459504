package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := LoadDatabase(buildLookupSample(t), BigEndian)
	if err != nil {
		t.Fatal(err)
	}
	return NewServer(DefaultConfig(), db)
}

func TestResolveCountry(t *testing.T) {
	r := testServer(t).router()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/country/1.0.0.1,2001:db8::1,9.9.9.9", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	out := map[string]string{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out["1.0.0.1"] != "US" || out["2001:db8::1"] != "DE" {
		t.Errorf("response = %v", out)
	}
	if _, ok := out["9.9.9.9"]; ok {
		t.Errorf("unknown address should be omitted: %v", out)
	}
}

func TestResolveCountryBadRequest(t *testing.T) {
	r := testServer(t).router()

	tooMany := strings.TrimSuffix(strings.Repeat("1.0.0.1,", MaxIPsPerRequest+1), ",")
	for _, ips := range []string{"not-an-ip", tooMany, ","} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/country/"+ips, nil))
		if w.Code != http.StatusBadRequest {
			t.Errorf("%q: status = %d, want 400", ips, w.Code)
		}
	}
}

func TestUsage(t *testing.T) {
	r := testServer(t).router()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "/country/") {
		t.Errorf("status = %d, body %q", w.Code, w.Body.String())
	}
}
