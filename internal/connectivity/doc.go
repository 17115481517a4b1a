// Package connectivity tracks whether the device can reach the internet and
// broadcasts online/offline transitions.
//
// A Monitor starts optimistic (online) and changes state only when an
// observation says otherwise. Observations come from an HTTPProber polled on
// an interval, from a LinkWatcher that re-probes on kernel link events, or
// directly through Observe.
package connectivity
