package utils

import (
	"sync"
	"time"
)

// Tracks performance metrics across the system
type MetricsCollector struct {
	mu           sync.RWMutex
	requestCount uint64
	errorCount   uint64

	// Maps operation name to list of latencies in nanoseconds
	operationTimes map[string][]int64

	// Fan-out counters, keyed by notification type
	notificationsSent    map[string]uint64
	notificationFailures uint64

	systemStartTime time.Time
}

// MetricsSnapshot is a point-in-time copy safe to serialize.
type MetricsSnapshot struct {
	Uptime               time.Duration     `json:"uptime"`
	RequestCount         uint64            `json:"requestCount"`
	ErrorCount           uint64            `json:"errorCount"`
	AverageLatency       map[string]int64  `json:"averageLatencyNs"`
	NotificationsSent    map[string]uint64 `json:"notificationsSent"`
	NotificationFailures uint64            `json:"notificationFailures"`
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		operationTimes:    make(map[string][]int64),
		notificationsSent: make(map[string]uint64),
		systemStartTime:   time.Now(),
	}
}

func (mc *MetricsCollector) IncrementRequests() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.requestCount++
}

func (mc *MetricsCollector) IncrementErrors() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.errorCount++
}

func (mc *MetricsCollector) AddOperationLatency(operationName string, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if _, exists := mc.operationTimes[operationName]; !exists {
		mc.operationTimes[operationName] = make([]int64, 0)
	}
	mc.operationTimes[operationName] = append(
		mc.operationTimes[operationName],
		duration.Nanoseconds(),
	)
}

// NotificationSent records one successfully created notification row.
func (mc *MetricsCollector) NotificationSent(notificationType string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.notificationsSent[notificationType]++
}

// NotificationFailed records one swallowed fan-out failure.
func (mc *MetricsCollector) NotificationFailed() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.notificationFailures++
}

// Snapshot copies the current counters for the health endpoint.
func (mc *MetricsCollector) Snapshot() MetricsSnapshot {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	avg := make(map[string]int64, len(mc.operationTimes))
	for op, times := range mc.operationTimes {
		if len(times) == 0 {
			continue
		}
		var total int64
		for _, t := range times {
			total += t
		}
		avg[op] = total / int64(len(times))
	}

	sent := make(map[string]uint64, len(mc.notificationsSent))
	for k, v := range mc.notificationsSent {
		sent[k] = v
	}

	return MetricsSnapshot{
		Uptime:               time.Since(mc.systemStartTime),
		RequestCount:         mc.requestCount,
		ErrorCount:           mc.errorCount,
		AverageLatency:       avg,
		NotificationsSent:    sent,
		NotificationFailures: mc.notificationFailures,
	}
}
