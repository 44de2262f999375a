package internaldefs

import (
	authkit "github.com/vantagecms/authkit"
)

// CounterDef defines a public type used by authkit APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   authkit.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by authkit APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   authkit.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the session manager.
var CounterDefs = []CounterDef{
	{ID: authkit.MetricLoginSuccess, Name: "authkit_login_success_total", Help: "Successful login attempts."},
	{ID: authkit.MetricLoginFailure, Name: "authkit_login_failure_total", Help: "Failed login attempts."},
	{ID: authkit.MetricRenewSuccess, Name: "authkit_renew_success_total", Help: "Successful token renewals."},
	{ID: authkit.MetricRenewFailure, Name: "authkit_renew_failure_total", Help: "Renewals that failed transiently."},
	{ID: authkit.MetricRenewRejected, Name: "authkit_renew_rejected_total", Help: "Renewals rejected by the backend."},
	{ID: authkit.MetricRenewJoined, Name: "authkit_renew_joined_total", Help: "Renewal calls coalesced into an in-flight renewal."},
	{ID: authkit.MetricBootstrapSuccess, Name: "authkit_bootstrap_success_total", Help: "Successful session bootstraps."},
	{ID: authkit.MetricBootstrapFailure, Name: "authkit_bootstrap_failure_total", Help: "Bootstraps that ended unauthenticated."},
	{ID: authkit.MetricLogout, Name: "authkit_logout_total", Help: "Explicit logout operations."},
	{ID: authkit.MetricSessionExpired, Name: "authkit_session_expired_total", Help: "Sessions ended by backend rejection."},
	{ID: authkit.MetricBroadcastPublished, Name: "authkit_broadcast_published_total", Help: "Session broadcasts published."},
	{ID: authkit.MetricBroadcastApplied, Name: "authkit_broadcast_applied_total", Help: "Remote session broadcasts applied."},
	{ID: authkit.MetricBroadcastDiscarded, Name: "authkit_broadcast_discarded_total", Help: "Remote session broadcasts discarded."},
}

// HistogramDefs is an exported constant or variable used by the session manager.
var HistogramDefs = []HistogramDef{
	{ID: authkit.MetricRenewLatency, Name: "authkit_renew_latency_seconds", Help: "Renewal latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the session manager.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the session manager.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
