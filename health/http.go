package health

import (
	"encoding/json"
	"net/http"
	"time"
)

// LivenessHandler returns a handler that answers 200 "OK" while the
// process is up. It runs no checks.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

// StatusResponse is the JSON body written by ReadinessHandler.
type StatusResponse struct {
	Status    string                    `json:"status"`
	Timestamp string                    `json:"timestamp"`
	Checks    map[string]ReportResponse `json:"checks,omitempty"`
}

// ReportResponse is the JSON form of one Report.
type ReportResponse struct {
	Status   string         `json:"status"`
	Message  string         `json:"message,omitempty"`
	Duration string         `json:"duration,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// ReadinessHandler returns a handler that runs every checker in agg and
// writes their reports as JSON. The response is 200 when the overall
// status is healthy or degraded and 503 when it is unhealthy, so an open
// breaker takes the process out of rotation while a half-open one does
// not.
func ReadinessHandler(agg *Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reports := agg.CheckAll(r.Context())
		status := Overall(reports)

		resp := StatusResponse{
			Status:    status.String(),
			Timestamp: agg.config.Now().UTC().Format(time.RFC3339),
			Checks:    make(map[string]ReportResponse, len(reports)),
		}
		for name, rep := range reports {
			rr := ReportResponse{
				Status:   rep.Status.String(),
				Message:  rep.Message,
				Duration: rep.Duration.String(),
				Details:  rep.Details,
			}
			if rep.Err != nil {
				rr.Error = rep.Err.Error()
			}
			resp.Checks[name] = rr
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode(status))
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// RegisterHandlers mounts LivenessHandler at /healthz and
// ReadinessHandler at /readyz.
func RegisterHandlers(mux *http.ServeMux, agg *Aggregator) {
	mux.HandleFunc("/healthz", LivenessHandler())
	mux.HandleFunc("/readyz", ReadinessHandler(agg))
}

func statusCode(s Status) int {
	if s == StatusUnhealthy {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}
