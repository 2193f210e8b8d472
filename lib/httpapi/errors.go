package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/qarax-project/qarax/lib/orchestrator"
	"github.com/qarax-project/qarax/lib/store"
	"github.com/qarax-project/qarax/lib/vmmanager"
)

// errorBody is the `{message, errors?}` shape §7 mandates for every HTTP
// error response. Errs is populated only for structured validation
// failures (request decode/field errors); RPC and store failures carry a
// nil Errs.
type errorBody struct {
	Message string   `json:"message"`
	Errs    []string `json:"errors,omitempty"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Message: message})
}

func writeValidationError(w http.ResponseWriter, message string, fieldErrs []string) {
	writeJSON(w, http.StatusUnprocessableEntity, errorBody{Message: message, Errs: fieldErrs})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDomainError maps an orchestrator/vmmanager/store error to one of
// the status codes in §7: 404 for missing resources, 422 for bad input
// or a failed node create (prefixed "qarax-node: "), 409 reserved for
// uniqueness violations (not currently produced by any handler here),
// 500 otherwise.
func writeDomainError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	var oerr *orchestrator.Error
	if errors.As(err, &oerr) {
		switch oerr.Kind {
		case orchestrator.KindNotFound:
			writeError(w, http.StatusNotFound, err.Error())
		case orchestrator.KindNoHostsAvailable, orchestrator.KindHostUnassigned, orchestrator.KindInvalidTransition, orchestrator.KindNodeCreateFailed:
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	var verr *vmmanager.Error
	if errors.As(err, &verr) {
		switch verr.Kind {
		case vmmanager.KindVMNotFound:
			writeError(w, http.StatusNotFound, err.Error())
		case vmmanager.KindVMAlreadyExists, vmmanager.KindInvalidConfig:
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeError(w, http.StatusInternalServerError, err.Error())
}
