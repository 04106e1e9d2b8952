package internaldefs

import (
	"github.com/MrEthical07/accountcore"
)

// CounterDef binds an Engine counter to its exported name.
type CounterDef struct {
	ID   accountcore.MetricID
	Name string
	Help string
}

// HistogramDef binds an Engine latency histogram to its exported name.
type HistogramDef struct {
	ID   accountcore.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: accountcore.MetricLoginSuccess, Name: "accountcore_login_success_total", Help: "Logins that issued a session token."},
	{ID: accountcore.MetricLoginFailure, Name: "accountcore_login_failure_total", Help: "Rejected credential checks."},
	{ID: accountcore.MetricLoginLocked, Name: "accountcore_login_locked_total", Help: "Attempts refused by an active lockout."},
	{ID: accountcore.MetricLockoutSoft, Name: "accountcore_lockout_soft_total", Help: "Transitions into the soft lockout tier."},
	{ID: accountcore.MetricLockoutEscalated, Name: "accountcore_lockout_escalated_total", Help: "Transitions into the hard lockout tier."},
	{ID: accountcore.MetricPasswordUpgraded, Name: "accountcore_password_upgraded_total", Help: "Password digests rehashed after login."},
	{ID: accountcore.MetricTwoFactorRequired, Name: "accountcore_two_factor_required_total", Help: "Logins that issued a two-factor challenge."},
	{ID: accountcore.MetricTwoFactorSuccess, Name: "accountcore_two_factor_success_total", Help: "Accepted two-factor codes."},
	{ID: accountcore.MetricTwoFactorFailure, Name: "accountcore_two_factor_failure_total", Help: "Rejected two-factor codes."},
	{ID: accountcore.MetricSessionIssued, Name: "accountcore_session_issued_total", Help: "Issued session tokens."},
	{ID: accountcore.MetricSessionRevoked, Name: "accountcore_session_revoked_total", Help: "Revoked session tokens."},
	{ID: accountcore.MetricValidateSuccess, Name: "accountcore_validate_success_total", Help: "Accepted session tokens."},
	{ID: accountcore.MetricValidateFailure, Name: "accountcore_validate_failure_total", Help: "Rejected session tokens."},
	{ID: accountcore.MetricPasswordResetRequest, Name: "accountcore_password_reset_request_total", Help: "Password reset requests."},
	{ID: accountcore.MetricPasswordResetConfirmSuccess, Name: "accountcore_password_reset_confirm_success_total", Help: "Successful password reset confirmations."},
	{ID: accountcore.MetricPasswordResetConfirmFailure, Name: "accountcore_password_reset_confirm_failure_total", Help: "Failed password reset confirmations."},
	{ID: accountcore.MetricPasswordResetReplay, Name: "accountcore_password_reset_replay_total", Help: "Consumed reset tokens presented again."},
	{ID: accountcore.MetricPasswordChangeSuccess, Name: "accountcore_password_change_success_total", Help: "Successful password changes."},
	{ID: accountcore.MetricPasswordChangeInvalidOld, Name: "accountcore_password_change_invalid_old_total", Help: "Password change attempts with a wrong current password."},
	{ID: accountcore.MetricPasswordChangeReuseRejected, Name: "accountcore_password_change_reuse_rejected_total", Help: "Password change attempts rejected for reuse."},
	{ID: accountcore.MetricPasswordChangeMismatch, Name: "accountcore_password_change_mismatch_total", Help: "Password change attempts with a mismatched confirmation."},
	{ID: accountcore.MetricRateLimitHit, Name: "accountcore_rate_limit_hit_total", Help: "Requests denied by the reset or two-factor limiters."},
	{ID: accountcore.MetricAccountCreated, Name: "accountcore_account_created_total", Help: "Created accounts."},
	{ID: accountcore.MetricAccountUpdated, Name: "accountcore_account_updated_total", Help: "Updated accounts."},
	{ID: accountcore.MetricAccountDeleted, Name: "accountcore_account_deleted_total", Help: "Deleted accounts."},
	{ID: accountcore.MetricAccountUnlocked, Name: "accountcore_account_unlocked_total", Help: "Operator unlocks."},
}

// HistogramDefs lists the exported latency histograms.
var HistogramDefs = []HistogramDef{
	{ID: accountcore.MetricLoginLatency, Name: "accountcore_login_latency_seconds", Help: "Login latency histogram."},
	{ID: accountcore.MetricValidateLatency, Name: "accountcore_validate_latency_seconds", Help: "Validate latency histogram."},
}

// Source is what the exporters read on every scrape or collection.
type Source interface {
	MetricsSnapshot() accountcore.MetricsSnapshot
	AuditDropped() uint64
	NotificationsDropped() uint64
}

// DeliveryDef names a dispatcher drop counter read straight from the Source.
type DeliveryDef struct {
	Name string
	Help string
	Read func(Source) uint64
}

// DeliveryDefs lists the dispatcher drop counters.
var DeliveryDefs = []DeliveryDef{
	{
		Name: "accountcore_audit_dropped_total",
		Help: "Audit events dropped under dispatcher backpressure.",
		Read: func(s Source) uint64 { return s.AuditDropped() },
	},
	{
		Name: "accountcore_notifications_dropped_total",
		Help: "Notifications dropped under dispatcher backpressure.",
		Read: func(s Source) uint64 { return s.NotificationsDropped() },
	},
}

// HistogramBounds are the upper bounds of the Engine's eight latency buckets, in seconds.
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

// HistogramBoundSuffix is HistogramBounds spelled for instrument names.
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

// NormalizeBuckets copies raw into a fixed eight-bucket array, zero-filling
// missing entries.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}

// CounterValue is one counter reading.
type CounterValue struct {
	Name  string
	Help  string
	Value uint64
}

// HistogramValue is one histogram reading with cumulative buckets.
type HistogramValue struct {
	Name       string
	Help       string
	Cumulative [8]uint64
}

// Count is the total number of samples.
func (h HistogramValue) Count() uint64 {
	return h.Cumulative[len(h.Cumulative)-1]
}

// Sample is a single consistent read of a Source, ordered as the def tables.
type Sample struct {
	Counters   []CounterValue
	Histograms []HistogramValue
	Deliveries []CounterValue

	// Active is false when metrics are disabled and nothing was dropped.
	Active bool
}

// Collect reads src once. Counters missing from the snapshot read as zero.
func Collect(src Source) Sample {
	snapshot := src.MetricsSnapshot()
	out := Sample{
		Counters:   make([]CounterValue, 0, len(CounterDefs)),
		Histograms: make([]HistogramValue, 0, len(HistogramDefs)),
		Deliveries: make([]CounterValue, 0, len(DeliveryDefs)),
		Active:     len(snapshot.Counters) > 0 || len(snapshot.Histograms) > 0,
	}
	for _, def := range CounterDefs {
		out.Counters = append(out.Counters, CounterValue{Name: def.Name, Help: def.Help, Value: snapshot.Counters[def.ID]})
	}
	for _, def := range HistogramDefs {
		out.Histograms = append(out.Histograms, HistogramValue{
			Name:       def.Name,
			Help:       def.Help,
			Cumulative: CumulativeBuckets(NormalizeBuckets(snapshot.Histograms[def.ID])),
		})
	}
	for _, def := range DeliveryDefs {
		v := def.Read(src)
		if v > 0 {
			out.Active = true
		}
		out.Deliveries = append(out.Deliveries, CounterValue{Name: def.Name, Help: def.Help, Value: v})
	}
	return out
}
