package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/qarax-project/qarax/lib/logger"
)

func (s *Server) listVMs(w http.ResponseWriter, r *http.Request) {
	vms, err := s.st.ListVMs(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vms)
}

func (s *Server) getVM(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	vm, err := s.st.GetVM(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vm)
}

// createVM dispatches POST /vms: 201 {id} for a synchronous create, 202
// {vm_id, job_id} when image_ref is present and the create runs as a
// background image-pull job.
func (s *Server) createVM(w http.ResponseWriter, r *http.Request) {
	var req createVMRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, "invalid request body", []string{err.Error()})
		return
	}
	if req.Name == "" {
		writeValidationError(w, "name is required", nil)
		return
	}

	vm, job, err := s.orch.CreateVM(r.Context(), req.toOrchestratorRequest())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if job != nil {
		writeJSON(w, http.StatusAccepted, createVMAsyncResponse{VMID: vm.ID, JobID: job.ID})
		return
	}
	writeJSON(w, http.StatusCreated, createVMSyncResponse{ID: vm.ID})
}

func (s *Server) deleteVM(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.orch.DeleteVM(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// lifecycleAction builds the handler for POST /vms/{id}/{start,stop,pause,resume}.
// Every transition replies 200 on success; §6 also allows 202, reserved
// for a future truly-async start (not exercised today since the node
// call is synchronous).
func (s *Server) lifecycleAction(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		log := logger.FromContext(r.Context())

		var err error
		switch action {
		case "start":
			err = s.orch.StartVM(r.Context(), id)
		case "stop":
			err = s.orch.StopVM(r.Context(), id)
		case "pause":
			err = s.orch.PauseVM(r.Context(), id)
		case "resume":
			err = s.orch.ResumeVM(r.Context(), id)
		}
		if err != nil {
			log.WarnContext(r.Context(), "lifecycle action failed", "action", action, "vm_id", id, "error", err)
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func (s *Server) getMetrics(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	vm, err := s.st.GetVM(ctx, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	metrics, err := s.orch.GetMetrics(ctx, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, metricsResponse{
		VMID:             id,
		Status:           string(vm.Status),
		MemoryActualSize: metrics.MemoryActualSize,
		Counters:         metrics.Counters,
	})
}

// getConsole streams the VM's console output as text/plain for as long
// as the client stays connected.
func (s *Server) getConsole(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	stream, err := s.orch.Console(ctx, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	for {
		frame, err := stream.Recv()
		if err != nil {
			return
		}
		if frame.EOF {
			return
		}
		if len(frame.Data) > 0 {
			if _, werr := w.Write(frame.Data); werr != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

func (s *Server) listJobsForVM(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	jobs, err := s.st.ListJobsForVM(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}
