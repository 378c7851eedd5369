// AngelaMos | 2026
// handler_test.go

package admin

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/taskflow-auth/internal/account"
)

type fakeStats struct {
	stats *account.Stats
	err   error
}

func (f fakeStats) AccountStats(context.Context) (*account.Stats, error) {
	return f.stats, f.err
}

func passThrough(next http.Handler) http.Handler { return next }

func deny(http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
}

func newRouter(h *Handler, guard func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Route("/v1", func(r chi.Router) {
		h.RegisterRoutes(r, passThrough, guard)
	})
	return r
}

func TestGetSystemStats(t *testing.T) {
	h := NewHandler(HandlerConfig{
		DBStats:   func() sql.DBStats { return sql.DBStats{OpenConnections: 3, InUse: 1} },
		DBPing:    func(context.Context) error { return nil },
		RedisPing: func(context.Context) error { return errors.New("down") },
		Accounts: fakeStats{stats: &account.Stats{
			Total:    4,
			Verified: 3,
			ByRole:   []account.RoleCount{{Role: "worker", Count: 3}, {Role: "owner", Count: 1}},
		}},
		AuditDropped: func() uint64 { return 2 },
	})

	rec := httptest.NewRecorder()
	newRouter(h, passThrough).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/admin/stats", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Success bool                `json:"success"`
		Data    SystemStatsResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}

	d := body.Data
	if !d.Database.Healthy || d.Redis.Healthy {
		t.Fatalf("health = %+v / %+v", d.Database, d.Redis)
	}
	if d.Database.Stats == nil || d.Database.Stats.OpenConnections != 3 {
		t.Fatalf("db stats = %+v", d.Database.Stats)
	}
	if d.Accounts == nil || d.Accounts.Total != 4 || d.Accounts.Verified != 3 {
		t.Fatalf("accounts = %+v", d.Accounts)
	}
	if d.AuditDropped != 2 || d.Runtime.GoVersion == "" {
		t.Fatalf("data = %+v", d)
	}
}

func TestAccountStatsErrors(t *testing.T) {
	h := NewHandler(HandlerConfig{Accounts: fakeStats{err: errors.New("db gone")}})

	rec := httptest.NewRecorder()
	newRouter(h, passThrough).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/admin/stats/accounts", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	newRouter(NewHandler(HandlerConfig{}), passThrough).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/admin/stats/accounts", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unconfigured status = %d", rec.Code)
	}
}

func TestRoutesAreGuarded(t *testing.T) {
	h := NewHandler(HandlerConfig{})

	for _, path := range []string{"/v1/admin/stats", "/v1/admin/stats/runtime"} {
		rec := httptest.NewRecorder()
		newRouter(h, deny).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusForbidden {
			t.Fatalf("%s status = %d", path, rec.Code)
		}
	}
}
