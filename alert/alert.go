// Package alert fans a single Alert out to zero or more notification
// channels, applying deduplication, per-minute rate limiting, and
// label/severity-based routing rules.
package alert

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"time"
)

// Severity classifies how urgently an Alert needs attention.
type Severity string

const (
	Info     Severity = "info"
	Warning  Severity = "warning"
	Error    Severity = "error"
	Critical Severity = "critical"
)

// Status is the lifecycle state of an Alert.
type Status string

const (
	Firing   Status = "firing"
	Resolved Status = "resolved"
)

// Alert is a single notification event. Fingerprint identifies the
// logical event it represents; two Alerts with the same Name, Source, and
// Labels share a Fingerprint and are treated as the same event by
// deduplication.
type Alert struct {
	Name        string
	Severity    Severity
	Summary     string
	Description string
	Source      string
	Status      Status
	Labels      map[string]string
	Annotations map[string]string
	Timestamp   time.Time
}

// Fingerprint computes a stable hash of {name, source, sorted labels}.
func (a Alert) Fingerprint() string {
	keys := make([]string, 0, len(a.Labels))
	for k := range a.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	h.Write([]byte(a.Name))
	h.Write([]byte{0})
	h.Write([]byte(a.Source))
	for _, k := range keys {
		h.Write([]byte{0})
		h.Write([]byte(k))
		h.Write([]byte{'='})
		h.Write([]byte(a.Labels[k]))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Rule selects which channels an Alert routes to. Every specified filter
// must match for the rule to apply; an unset filter always matches.
type Rule struct {
	ChannelNames    []string
	Severities      []Severity
	Sources         []string
	RequiredLabels  map[string]string
}

func (r Rule) matches(a Alert) bool {
	if len(r.Severities) > 0 && !containsSeverity(r.Severities, a.Severity) {
		return false
	}
	if len(r.Sources) > 0 && !containsString(r.Sources, a.Source) {
		return false
	}
	for k, v := range r.RequiredLabels {
		if a.Labels[k] != v {
			return false
		}
	}
	return true
}

func containsSeverity(list []Severity, s Severity) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Result is what a channel returns after attempting to deliver an Alert.
type Result struct {
	Success  bool
	Channel  string
	Error    error
	Response string
}

// Channel is the contract every notification backend satisfies.
type Channel interface {
	Name() string
	Send(alert Alert) Result
}
