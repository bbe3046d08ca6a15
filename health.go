package p2pchat

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// CheckResult is the outcome of one readiness check.
type CheckResult struct {
	Name     string        `json:"name"`
	Healthy  bool          `json:"healthy"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration_ns,omitempty"`
}

// HealthStatus is the combined result of ReadinessChecks. Healthy is false
// when any required check fails.
type HealthStatus struct {
	Healthy   bool          `json:"healthy"`
	Checks    []CheckResult `json:"checks"`
	Timestamp time.Time     `json:"timestamp"`
}

// readinessCheck reports (ok, message). Informational checks never make
// the node unready.
type readinessCheck struct {
	name          string
	informational bool
	run           func() (bool, string)
}

// IsHealthy returns true if the node is running and its listener is bound.
// It is cheap enough for liveness probes.
func (n *Node) IsHealthy() bool {
	return n.isStarted() && n.connections.Addr() != nil
}

func (n *Node) isStarted() bool {
	n.startMu.Lock()
	defer n.startMu.Unlock()
	return n.started
}

func (n *Node) readinessChecks() []readinessCheck {
	return []readinessCheck{
		{name: "node_started", run: func() (bool, string) {
			if n.isStarted() {
				return true, "node is running"
			}
			return false, "node is not started"
		}},
		{name: "listener", run: func() (bool, string) {
			addr := n.connections.Addr()
			if !n.isStarted() || addr == nil {
				return false, "listener is not bound"
			}
			return true, "listening on " + addr.String()
		}},
		// A full inbox drops messages but the node keeps working.
		{name: "inbox", informational: true, run: func() (bool, string) {
			return true, fmt.Sprintf("%d of %d messages queued", n.inbox.Len(), n.config.InboxSize)
		}},
		{name: "connections", informational: true, run: func() (bool, string) {
			total := n.connections.Len()
			if total == 0 {
				return true, "no active connections"
			}
			return true, fmt.Sprintf("%d connections, %d secured", total, n.connections.SecuredCount())
		}},
	}
}

// ReadinessChecks runs node_started, listener, inbox and connections and
// reports each with its duration.
func (n *Node) ReadinessChecks() HealthStatus {
	checks := n.readinessChecks()
	status := HealthStatus{
		Healthy:   true,
		Checks:    make([]CheckResult, 0, len(checks)),
		Timestamp: time.Now(),
	}
	for _, c := range checks {
		start := time.Now()
		ok, msg := c.run()
		status.Checks = append(status.Checks, CheckResult{
			Name:     c.name,
			Healthy:  ok,
			Message:  msg,
			Duration: time.Since(start),
		})
		if !ok && !c.informational {
			status.Healthy = false
		}
	}
	return status
}

// HealthHandler serves ReadinessChecks as JSON: 200 when ready, 503
// otherwise.
//
//	mux.Handle("/healthz", p2pchat.HealthHandler(node))
func HealthHandler(node *Node) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := node.ReadinessChecks()
		writeHealth(w, status.Healthy)
		_ = json.NewEncoder(w).Encode(status)
	})
}

// LivenessHandler serves IsHealthy as {"healthy":bool}: 200 when alive, 503
// otherwise.
//
//	mux.Handle("/livez", p2pchat.LivenessHandler(node))
func LivenessHandler(node *Node) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		healthy := node.IsHealthy()
		writeHealth(w, healthy)
		_, _ = fmt.Fprintf(w, `{"healthy":%t}`, healthy)
	})
}

func writeHealth(w http.ResponseWriter, healthy bool) {
	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
}
