package ndns

import (
	"context"
	"encoding/json"
	"expvar"
	"net"
	"net/http"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// adminServerTimeout bounds read/write on the admin HTTP listener.
const adminServerTimeout = 10 * time.Second

// AdminListener exposes expvar metrics and a process/DAP health snapshot
// over plain HTTP. It carries no TLS/QUIC transport of its own — the
// teacher's admin surface supported those for an operator-facing
// dashboard, but nothing here needs more than a loopback-or-firewalled
// metrics endpoint.
type AdminListener struct {
	id      string
	addr    string
	started time.Time
	dap     *DAP

	httpServer *http.Server
	mux        *http.ServeMux
}

// NewAdminListener returns an admin listener bound to addr. resolver is
// inspected for a DAP() *DAP method (NVSResolver provides one) to surface
// abuse-filter occupancy on /ndns/health; a resolver without one just
// omits that field.
func NewAdminListener(id, addr string, resolver Resolver) *AdminListener {
	var dap *DAP
	if p, ok := resolver.(dapProvider); ok {
		dap = p.DAP()
	}
	l := &AdminListener{
		id:      id,
		addr:    addr,
		started: time.Now(),
		dap:     dap,
		mux:     http.NewServeMux(),
	}
	l.mux.Handle("/ndns/vars", expvar.Handler())
	l.mux.HandleFunc("/ndns/health", l.serveHealth)
	return l
}

type healthResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds int64   `json:"uptime_seconds"`
	NumGoroutine  int     `json:"num_goroutine"`
	CPUPercent    float64 `json:"cpu_percent,omitempty"`
	MemUsedMB     float64 `json:"mem_used_mb,omitempty"`
	MemUsedPct    float64 `json:"mem_used_percent,omitempty"`
	DAPSize       int     `json:"dap_size,omitempty"`
	DAPOccupied   int     `json:"dap_occupied,omitempty"`
	DAPThreshold  uint32  `json:"dap_threshold,omitempty"`
}

func (l *AdminListener) serveHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(l.started).Seconds()),
		NumGoroutine:  runtime.NumGoroutine(),
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		resp.MemUsedMB = float64(vm.Used) / 1024 / 1024
		resp.MemUsedPct = vm.UsedPercent
	}
	if pct, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(pct) > 0 {
		resp.CPUPercent = pct[0]
	}
	if stats := l.dap.Stats(); stats.Size > 0 {
		resp.DAPSize = stats.Size
		resp.DAPOccupied = stats.Occupied
		resp.DAPThreshold = stats.Threshold
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// Start runs the admin HTTP server until Stop is called.
func (l *AdminListener) Start() error {
	logger(l.id, nil, ClientInfo{Listener: l.id}).Info("starting admin listener")
	l.httpServer = &http.Server{
		Addr:         l.addr,
		Handler:      l.mux,
		ReadTimeout:  adminServerTimeout,
		WriteTimeout: adminServerTimeout,
	}
	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return err
	}
	defer ln.Close()
	err = l.httpServer.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop shuts the admin server down.
func (l *AdminListener) Stop() error {
	logger(l.id, nil, ClientInfo{Listener: l.id}).Info("stopping admin listener")
	if l.httpServer == nil {
		return nil
	}
	return l.httpServer.Shutdown(context.Background())
}

func (l *AdminListener) String() string { return l.id }
