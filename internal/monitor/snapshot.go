package monitor

import (
	"sort"
	"time"
)

// Security score weights per severity.
const (
	scoreBase           = 100
	scoreCriticalWeight = 10
	scoreErrorWeight    = 5
	scoreWarningWeight  = 2
)

// AddrCount pairs a client address with its event count.
type AddrCount struct {
	Addr  string `json:"addr"`
	Count int    `json:"count"`
}

// Snapshot is an aggregate view over the retained events.
type Snapshot struct {
	// TotalEvents is the number of events currently retained.
	TotalEvents int `json:"total_events"`

	// ByType counts retained events per event type.
	ByType map[string]int `json:"by_type"`

	// BySeverity counts retained events per severity name.
	BySeverity map[string]int `json:"by_severity"`

	// TopClientAddrs lists the ten busiest client addresses.
	TopClientAddrs []AddrCount `json:"top_client_addrs"`

	// SecurityScore is a 0-100 health score derived from the severity
	// mix of retained events.
	SecurityScore int `json:"security_score"`

	// GeneratedAt is when the snapshot was taken.
	GeneratedAt time.Time `json:"generated_at"`
}

// topAddrLimit caps the busiest address list.
const topAddrLimit = 10

// Snapshot aggregates the retained events into counters and a
// security score. A buffer with no warnings or worse scores 100.
func (m *Monitor) Snapshot() *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byType := make(map[string]int)
	bySeverity := make(map[string]int)
	byAddr := make(map[string]int)

	for i := 0; i < m.size; i++ {
		event := m.eventAt(i)
		byType[event.Type]++
		bySeverity[event.Severity.String()]++
		if event.ClientAddr != "" {
			byAddr[event.ClientAddr]++
		}
	}

	score := scoreBase
	score -= scoreCriticalWeight * bySeverity[SeverityCritical.String()]
	score -= scoreErrorWeight * bySeverity[SeverityError.String()]
	score -= scoreWarningWeight * bySeverity[SeverityWarning.String()]
	if score < 0 {
		score = 0
	}

	return &Snapshot{
		TotalEvents:    m.size,
		ByType:         byType,
		BySeverity:     bySeverity,
		TopClientAddrs: topAddrs(byAddr),
		SecurityScore:  score,
		GeneratedAt:    m.now(),
	}
}

// topAddrs returns the busiest addresses sorted by count descending,
// with address order as a tiebreaker to keep output stable.
func topAddrs(byAddr map[string]int) []AddrCount {
	addrs := make([]AddrCount, 0, len(byAddr))
	for addr, count := range byAddr {
		addrs = append(addrs, AddrCount{Addr: addr, Count: count})
	}

	sort.Slice(addrs, func(i, j int) bool {
		if addrs[i].Count != addrs[j].Count {
			return addrs[i].Count > addrs[j].Count
		}
		return addrs[i].Addr < addrs[j].Addr
	})

	if len(addrs) > topAddrLimit {
		addrs = addrs[:topAddrLimit]
	}
	return addrs
}
