package workflows_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// stubRO is a minimal in-memory stand-in for the Resource Orchestrator
// HTTP API, just enough surface for the workflow specs below to drive
// create/attach/show/delete round-trips without a real RO deployment.
type stubRO struct {
	mu               sync.Mutex
	store            map[string]map[string]map[string]interface{} // type -> id -> item
	counter          int
	server           *httptest.Server
	forceDeleteError bool
	nextNsStatus     string // overrides the default "ACTIVE" a freshly created ns item gets
}

func newStubRO() *stubRO {
	s := &stubRO{store: make(map[string]map[string]map[string]interface{})}
	s.server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// items exposes a resource type's id->item map for test setup/assertions.
func (s *stubRO) items(resourceType string) map[string]map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collection(resourceType)
}

func (s *stubRO) URL() string { return s.server.URL }
func (s *stubRO) Close()      { s.server.Close() }

// setNsStatus forces an existing "ns" item's status, simulating RO
// finishing a deployment.
func (s *stubRO) setNsStatus(id, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item, ok := s.store["ns"][id]; ok {
		item["status"] = status
	}
}

func (s *stubRO) collection(resourceType string) map[string]map[string]interface{} {
	c, ok := s.store[resourceType]
	if !ok {
		c = make(map[string]map[string]interface{})
		s.store[resourceType] = c
	}
	return c
}

func (s *stubRO) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// path: /{tenant}/{rest...}
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 2 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	rest := parts[1:]

	if len(rest) >= 2 && rest[0] == "datacenters" {
		w.WriteHeader(http.StatusOK)
		return
	}

	resourceType := rest[0]

	if len(rest) >= 3 && resourceType == "ns" && rest[2] == "vnf-info" {
		writeJSON(w, http.StatusOK, map[string]interface{}{})
		return
	}

	switch r.Method {
	case http.MethodPost:
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		descriptor, _ := body[resourceType].(map[string]interface{})
		if descriptor == nil {
			descriptor = map[string]interface{}{}
		}
		s.counter++
		id := fmt.Sprintf("%s-%d", resourceType, s.counter)
		item := map[string]interface{}{"uuid": id}
		for k, v := range descriptor {
			item[k] = v
		}
		if resourceType == "ns" {
			status := s.nextNsStatus
			if status == "" {
				status = "ACTIVE"
			}
			item["status"] = status
		}
		s.collection(resourceType)[id] = item
		writeJSON(w, http.StatusOK, item)

	case http.MethodGet:
		if len(rest) == 1 {
			var out []map[string]interface{}
			osmID := r.URL.Query().Get("osm_id")
			for _, item := range s.collection(resourceType) {
				if osmID == "" || item["osm_id"] == osmID || item["id"] == osmID {
					out = append(out, item)
				}
			}
			writeJSON(w, http.StatusOK, out)
			return
		}
		item, ok := s.collection(resourceType)[rest[1]]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, item)

	case http.MethodPut:
		id := rest[1]
		item, ok := s.collection(resourceType)[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		descriptor, _ := body[resourceType].(map[string]interface{})
		for k, v := range descriptor {
			item[k] = v
		}
		writeJSON(w, http.StatusOK, item)

	case http.MethodDelete:
		if s.forceDeleteError {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		id := rest[1]
		if _, ok := s.collection(resourceType)[id]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		delete(s.collection(resourceType), id)
		w.WriteHeader(http.StatusOK)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
