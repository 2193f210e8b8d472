package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/qarax-project/qarax/lib/store"
)

func (s *Server) listHosts(w http.ResponseWriter, r *http.Request) {
	hosts, err := s.st.ListHosts(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hosts)
}

func (s *Server) getHost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	host, err := s.st.GetHost(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, host)
}

// createHost registers a node-agent endpoint with status "unknown". Unlike
// VM creation this is a direct store write that never contacts the node.
// The reconciler's probe only contacts hosts whose status is "up", so a
// new host leaves "unknown" only through PATCH /hosts/{id}.
func (s *Server) createHost(w http.ResponseWriter, r *http.Request) {
	var req createHostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, "invalid request body", []string{err.Error()})
		return
	}
	if req.Address == "" {
		writeValidationError(w, "address is required", nil)
		return
	}

	host, err := s.st.CreateHost(r.Context(), store.Host{
		Address:    req.Address,
		RPCPort:    req.RPCPort,
		SSHUser:    req.SSHUser,
		SSHKeyPath: req.SSHKeyPath,
		Status:     store.HostUnknown,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createHostResponse{ID: host.ID})
}

func (s *Server) patchHost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req patchHostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, "invalid request body", []string{err.Error()})
		return
	}
	if req.Status == nil {
		writeValidationError(w, "status is required", nil)
		return
	}
	if err := s.st.UpdateHostStatus(r.Context(), id, *req.Status); err != nil {
		writeDomainError(w, err)
		return
	}
	host, err := s.st.GetHost(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, host)
}
