package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// These counters are process-global (see metrics.go's doc comment on why),
// so every assertion here compares a before/after delta rather than an
// absolute value: other tests in this package increment the same
// instruments, and test execution order across files is not guaranteed.

func TestIncSTMRetryIncrementsCounter(t *testing.T) {
	before := testutil.ToFloat64(stmRetries)
	IncSTMRetry()
	require.Equal(t, before+1, testutil.ToFloat64(stmRetries))
}

func TestIncAtomCASContentionIncrementsCounter(t *testing.T) {
	before := testutil.ToFloat64(atomCASContention)
	IncAtomCASContention()
	require.Equal(t, before+1, testutil.ToFloat64(atomCASContention))
}

func TestIncRefCommitIncrementsCounter(t *testing.T) {
	before := testutil.ToFloat64(refCommits)
	IncRefCommit()
	require.Equal(t, before+1, testutil.ToFloat64(refCommits))
}

func TestIncPromiseDeliveryIncrementsCounter(t *testing.T) {
	before := testutil.ToFloat64(promiseDeliveries)
	IncPromiseDelivery()
	require.Equal(t, before+1, testutil.ToFloat64(promiseDeliveries))
}

func TestRegisterAttachesASubsystemsOwnCollectorToScrape(t *testing.T) {
	reg := New(nil)
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lumen_test_subsystem_events_total",
		Help: "test-only counter standing in for a subsystem's own instrument.",
	})
	reg.Register(c)
	c.Inc()
	require.Equal(t, float64(1), testutil.ToFloat64(c))

	mfs, err := reg.reg.Gather()
	require.NoError(t, err)
	var found bool
	for _, mf := range mfs {
		if mf.GetName() == "lumen_test_subsystem_events_total" {
			found = true
		}
	}
	require.True(t, found, "registered collector must appear in a Gather()")
}

func TestNewRegistryPreregistersConcurrencyCounters(t *testing.T) {
	reg := New(nil)
	mfs, err := reg.reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(mfs))
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	for _, want := range []string{
		"lumen_stm_retries_total",
		"lumen_atom_cas_contention_total",
		"lumen_ref_commits_total",
		"lumen_promise_deliveries_total",
	} {
		require.True(t, names[want], "expected %s pre-registered", want)
	}
}
