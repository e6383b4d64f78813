// Package session хранит панель погоды для каждой сессии браузера.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gometeo/widget/internal/panel"
)

type entry struct {
	panel    *panel.Panel
	lastSeen time.Time
}

// DefaultMaxSessions - предел по умолчанию, если max <= 0
const DefaultMaxSessions = 1000

type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry
	newPanel func() *panel.Panel
	now      func() time.Time
	max      int
}

func NewRegistry(newPanel func() *panel.Panel, max int) *Registry {
	if max <= 0 {
		max = DefaultMaxSessions
	}
	return &Registry{
		sessions: make(map[string]*entry),
		newPanel: newPanel,
		now:      time.Now,
		max:      max,
	}
}

// Lookup возвращает панель только для существующей сессии
func (r *Registry) Lookup(id string) (*panel.Panel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = r.now()
	return e.panel, true
}

// Get возвращает панель сессии. Для неизвестного id создается новая сессия;
// created=true означает, что панель еще не смонтирована.
func (r *Registry) Get(id string) (sid string, p *panel.Panel, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.sessions[id]; ok && id != "" {
		e.lastSeen = r.now()
		return id, e.panel, false
	}

	if len(r.sessions) >= r.max {
		r.evictOldest()
	}

	sid = uuid.NewString()
	e := &entry{panel: r.newPanel(), lastSeen: r.now()}
	r.sessions[sid] = e
	return sid, e.panel, true
}

// evictOldest закрывает давно не использованную сессию. Вызывается под r.mu.
func (r *Registry) evictOldest() {
	var oldestID string
	var oldest *entry
	for id, e := range r.sessions {
		if oldest == nil || e.lastSeen.Before(oldest.lastSeen) {
			oldestID, oldest = id, e
		}
	}
	if oldest != nil {
		oldest.panel.Close()
		delete(r.sessions, oldestID)
	}
}

// Sweep закрывает сессии, неактивные дольше ttl
func (r *Registry) Sweep(ttl time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-ttl)
	removed := 0
	for id, e := range r.sessions {
		if e.lastSeen.Before(cutoff) {
			e.panel.Close()
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.sessions {
		e.panel.Close()
		delete(r.sessions, id)
	}
}
