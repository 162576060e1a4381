package dashboard

import (
	"encoding/json"
	"net/http"
)

type Handler struct {
	VM *ViewModel
}

func NewHandler(vm *ViewModel) *Handler {
	return &Handler{VM: vm}
}

// Get refreshes and returns the dashboard. A failed refresh still answers
// with the last good snapshot next to the error. The error field reflects
// this request's refresh, not a concurrent one.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	err := h.VM.Refresh(r.Context())
	st := h.VM.State()
	st.Error = ""
	if err != nil {
		status = http.StatusBadGateway
		st.Error = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(st)
}
