// Package metrics is the runtime's single observability surface: a
// prometheus.Registry that every subsystem's own instruments attach to
// (internal/gc already builds its pause/collected/live instruments at
// Heap construction and hands them back via Collectors()), plus a small
// set of package-level counters for cross-cutting concurrency events
// (STM retries, atom compare-and-set contention, ref commits) that have
// no single owning struct to attach a method to. This is in-process
// instrumentation exposed over HTTP for scraping, not a distributed
// coordination layer — carried regardless of the "no distributed
// coordination" non-goal, the same way structured logging is carried
// regardless of a spec's Non-goals excluding an outer observability
// surface.
package metrics

import (
	"net/http"

	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns the process's prometheus registry and every collector
// registered into it.
type Registry struct {
	reg *prometheus.Registry
	log hclog.Logger
}

// New creates an empty Registry and pre-registers the package-level
// concurrency counters (STM retries, atom CAS contention, ref commits,
// promise deliveries) so a
// scrape always reports them, even at zero, rather than only once the
// first event fires.
func New(log hclog.Logger) *Registry {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	r := &Registry{reg: prometheus.NewRegistry(), log: log.Named("metrics")}
	r.reg.MustRegister(stmRetries, atomCASContention, refCommits, promiseDeliveries)
	return r
}

// Register attaches a subsystem's own collectors (e.g. *gc.Heap's
// pause/collected/live instruments) to this registry. Called once per
// subsystem at bootstrap; a duplicate registration panics immediately
// rather than silently dropping the collector, the same fail-fast
// posture dispatch.New's uninstalled stubs take.
func (r *Registry) Register(collectors ...prometheus.Collector) {
	for _, c := range collectors {
		r.reg.MustRegister(c)
	}
}

// Handler returns the HTTP handler a caller mounts at a metrics endpoint
// (e.g. "/metrics"), mirroring the teacher's own "/v1/metrics?format=
// prometheus" telemetry endpoint, minus its legacy non-prometheus format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// The following are process-global because they're incremented from deep
// inside internal/concurrency call paths (doGet/doSet/doEnsure retries,
// AtomSwap's CAS loop, commit's success path) that have no Registry
// reference threaded through their constructors — mirroring the
// teacher's own armon/go-metrics convention of incrementing named
// counters from a flat global API rather than plumbing a metrics handle
// through every call site.
var (
	stmRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lumen_stm_retries_total",
		Help: "Total STM transaction retries across every ref commit attempt.",
	})
	atomCASContention = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lumen_atom_cas_contention_total",
		Help: "Total failed compare-and-set attempts inside swap!'s retry loop.",
	})
	refCommits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lumen_ref_commits_total",
		Help: "Total successful STM transaction commits.",
	})
	promiseDeliveries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lumen_promise_deliveries_total",
		Help: "Total promises delivered (deliver calls that were not a no-op).",
	})
)

// IncSTMRetry records one STM transaction restarting after a conflicting commit.
func IncSTMRetry() { stmRetries.Inc() }

// IncAtomCASContention records one failed compare-and-set inside swap!'s retry loop.
func IncAtomCASContention() { atomCASContention.Inc() }

// IncRefCommit records one successful STM transaction commit.
func IncRefCommit() { refCommits.Inc() }

// IncPromiseDelivery records one promise transitioning from undelivered to delivered.
func IncPromiseDelivery() { promiseDeliveries.Inc() }
