package rating

import (
	"sort"
	"sync"
)

// teamLocks hands out one mutex per team id
type teamLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newTeamLocks() *teamLocks {
	return &teamLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *teamLocks) get(teamID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[teamID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[teamID] = m
	}
	return m
}

// lock acquires the locks of all given teams in sorted order and returns the
// matching unlock function
func (l *teamLocks) lock(teamIDs ...string) func() {
	ids := append([]string(nil), teamIDs...)
	sort.Strings(ids)

	held := make([]*sync.Mutex, 0, len(ids))
	for i, id := range ids {
		if i > 0 && ids[i-1] == id {
			continue
		}
		m := l.get(id)
		m.Lock()
		held = append(held, m)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}
