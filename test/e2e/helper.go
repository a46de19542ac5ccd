package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/zutrittswerk/portier/internal/handlers"
	"github.com/zutrittswerk/portier/internal/services"
	"github.com/zutrittswerk/portier/internal/services/authorization"
	"github.com/zutrittswerk/portier/internal/store"
	"github.com/zutrittswerk/portier/pkg/cache/memorycache"
)

// E2ETestServer is a full API stack over in-memory stores with the
// resolver cache enabled, close to the production wiring minus Postgres.
type E2ETestServer struct {
	Server    *httptest.Server
	Directory *services.DirectoryService
	Resolver  *authorization.Resolver
}

// SetupE2ETest starts an in-process API server. The server is torn down
// with the test.
func SetupE2ETest(t *testing.T) *E2ETestServer {
	t.Helper()

	pgroups := store.NewHierarchy()
	rgroups := store.NewHierarchy()
	permissions := store.NewPermissionStore()
	memberships := store.NewMembershipStore()

	c, err := memorycache.New(&memorycache.Config{
		MaxSizeBytes:  8 * 1024 * 1024,
		DefaultTTL:    5 * time.Minute,
		EnableMetrics: true,
	})
	if err != nil {
		t.Fatalf("creating cache: %v", err)
	}
	resolver := authorization.NewResolverWithCache(pgroups, rgroups, permissions, memberships, c, 5*time.Minute)
	directory := services.NewDirectoryService(pgroups, rgroups, permissions, memberships, resolver, nil)

	access := handlers.NewAccessHandler(resolver, directory, memberships, pgroups, rgroups, nil)
	admin := handlers.NewAdminHandler(directory)
	srv := httptest.NewServer(handlers.NewRouter(access, admin, nil))
	t.Cleanup(srv.Close)

	return &E2ETestServer{Server: srv, Directory: directory, Resolver: resolver}
}

// Do issues a JSON request against the test server and decodes the
// response body into a generic map.
func (s *E2ETestServer) Do(t *testing.T, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshaling request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, s.Server.URL+path, reader)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var decoded map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil && err != io.EOF {
		t.Fatalf("decoding %s %s response: %v", method, path, err)
	}
	return resp.StatusCode, decoded
}

// MustDo is Do but fails the test on an unexpected status code.
func (s *E2ETestServer) MustDo(t *testing.T, method, path string, body interface{}, wantStatus int) map[string]interface{} {
	t.Helper()

	status, decoded := s.Do(t, method, path, body)
	if status != wantStatus {
		t.Fatalf("%s %s: expected status %d, got %d (%v)", method, path, wantStatus, status, decoded)
	}
	return decoded
}

// CheckAccess asserts the access decision for a user/door pair.
func (s *E2ETestServer) CheckAccess(t *testing.T, userID, doorID int64, want bool) {
	t.Helper()

	body := s.MustDo(t, http.MethodGet, fmt.Sprintf("/api/check/%d/%d", userID, doorID), nil, http.StatusOK)
	granted, ok := body["access_granted"].(bool)
	if !ok {
		t.Fatalf("check %d/%d: malformed response %v", userID, doorID, body)
	}
	if granted != want {
		t.Fatalf("check %d/%d: expected access_granted=%v, got %v", userID, doorID, want, granted)
	}
}
