package auth

import (
	"encoding/json"
	"net/http"

	myMiddleware "go-pedidos/internal/middleware"
)

type Operator struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Me returns the operator behind the request's token.
func Me(w http.ResponseWriter, r *http.Request) {
	op := Operator{ID: myMiddleware.UserID(r.Context()), Email: myMiddleware.Email(r.Context())}
	if op.ID == "" {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(op)
}
