package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/carson-networks/spendiq-server/internal/logging"
)

const checkTimeout = 2 * time.Second

// Check is one dependency probed on every status request.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

type Response struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

type Handler struct {
	checks []Check
}

func NewHandler(checks ...Check) Handler {
	return Handler{checks: checks}
}

func (h *Handler) Handler(w http.ResponseWriter, req *http.Request, logData *logging.LogData) error {
	if req.Method != http.MethodGet {
		w.WriteHeader(http.StatusBadRequest)
		return errors.New("status: method not GET")
	}

	ctx, cancel := context.WithTimeout(req.Context(), checkTimeout)
	defer cancel()

	resp := Response{Status: "ok", Checks: make(map[string]string, len(h.checks))}
	var failed error
	for _, c := range h.checks {
		endTimer := logData.AddTiming(c.Name)
		err := c.Ping(ctx)
		endTimer()
		if err != nil {
			resp.Checks[c.Name] = err.Error()
			resp.Status = "degraded"
			failed = errors.Join(failed, err)
			continue
		}
		resp.Checks[c.Name] = "ok"
	}

	code := http.StatusOK
	if failed != nil {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		return err
	}
	return failed
}
