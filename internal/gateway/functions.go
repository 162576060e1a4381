package gateway

import (
	"context"
	"encoding/json"
	"sync"
)

// Function is a privileged server-side action. It receives the gateway so it
// can read and write with full access, like a service-role client.
type Function func(ctx context.Context, gw Gateway, payload json.RawMessage) (Row, error)

type Functions struct {
	mu  sync.RWMutex
	fns map[string]Function
}

func NewFunctions() *Functions {
	return &Functions{fns: make(map[string]Function)}
}

func (f *Functions) Register(name string, fn Function) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fns[name] = fn
}

func (f *Functions) Lookup(name string) (Function, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	fn, ok := f.fns[name]
	return fn, ok
}
