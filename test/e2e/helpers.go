// Package e2e exercises the HTTP API with every component real except the
// remote matching service, which is faked.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/hyperengineering/grantscan/internal/api"
	"github.com/hyperengineering/grantscan/internal/archive"
	"github.com/hyperengineering/grantscan/internal/export"
	"github.com/hyperengineering/grantscan/internal/matchsvc"
	"github.com/hyperengineering/grantscan/internal/narrative"
	"github.com/hyperengineering/grantscan/internal/scan"
	"github.com/hyperengineering/grantscan/internal/store"
	"github.com/hyperengineering/grantscan/internal/wizard"
)

const apiKey = "e2e-test-api-key"

// matchingService is a fake of the remote matching service that records
// the profiles it was sent.
type matchingService struct {
	*httptest.Server

	mu       sync.Mutex
	profiles []map[string]any
}

func startMatchingService(t *testing.T, scanResponse string) *matchingService {
	t.Helper()
	m := &matchingService{}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /scan/anonymous", func(w http.ResponseWriter, r *http.Request) {
		var p map[string]any
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			http.Error(w, `{"detail": "bad profile"}`, http.StatusUnprocessableEntity)
			return
		}
		m.mu.Lock()
		m.profiles = append(m.profiles, p)
		m.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, scanResponse)
	})
	mux.HandleFunc("POST /reports/download", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="grant-report-e2e.pdf"`)
		io.WriteString(w, "%PDF-1.7 e2e")
	})

	m.Server = httptest.NewServer(mux)
	t.Cleanup(m.Close)
	return m
}

func (m *matchingService) lastProfile(t *testing.T) map[string]any {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.profiles) == 0 {
		t.Fatal("matching service received no scans")
	}
	return m.profiles[len(m.profiles)-1]
}

// stack is one running instance of the API over a state database.
type stack struct {
	server *httptest.Server
	db     *store.SQLiteStore
}

// startStack builds the API the way the serve command does. Starting a
// second stack on the same dbPath simulates a restart.
func startStack(t *testing.T, dbPath, serviceURL string) *stack {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	ctx := context.Background()
	w := wizard.New(wizard.WithStore(db, store.DefaultScope), wizard.WithLogger(logger))
	w.Load(ctx)

	svc := matchsvc.New(matchsvc.Config{BaseURL: serviceURL}, logger)
	handler := api.NewHandler(api.Deps{
		Wizard:    w,
		Scans:     scan.New(svc, scan.WithLogger(logger)),
		Grants:    svc,
		Narrative: narrative.NewWriter(nil, logger),
		Exporter:  export.New(svc, archive.Noop{}, store.DefaultScope, logger),
		APIKey:    apiKey,
		Version:   "e2e",
	})

	s := &stack{server: httptest.NewServer(api.NewRouter(handler)), db: db}
	t.Cleanup(s.stop)
	return s
}

func (s *stack) stop() {
	if s.server != nil {
		s.server.Close()
		s.server = nil
		s.db.Close()
	}
}

// do sends an authenticated request and decodes a JSON response into out
// when out is non-nil. It returns the status code.
func (s *stack) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()

	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, s.server.URL+"/api/v1"+path, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}
