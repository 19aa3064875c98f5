package memory

import (
	"time"

	"github.com/patrickmn/go-cache"

	"ai-deepsearch-be/pkg/council"
	"ai-deepsearch-be/pkg/research"
)

// SessionRepository keeps research and council sessions in process memory.
// Every save refreshes the TTL, so a session only expires after it has
// been idle for the full window.
type SessionRepository struct {
	research *cache.Cache
	council  *cache.Cache
}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{
		research: cache.New(24*time.Hour, 10*time.Minute),
		council:  cache.New(24*time.Hour, 10*time.Minute),
	}
}

func (r *SessionRepository) SaveResearch(session *research.Session) {
	r.research.Set(session.ID, session, cache.DefaultExpiration)
}

func (r *SessionRepository) GetResearch(sessionID string) (*research.Session, bool) {
	if x, found := r.research.Get(sessionID); found {
		return x.(*research.Session), true
	}
	return nil, false
}

func (r *SessionRepository) SaveCouncil(session *council.Session) {
	r.council.Set(session.ID, session, cache.DefaultExpiration)
}

func (r *SessionRepository) GetCouncil(sessionID string) (*council.Session, bool) {
	if x, found := r.council.Get(sessionID); found {
		return x.(*council.Session), true
	}
	return nil, false
}
