package store

import (
	"context"
	"sync"

	"github.com/guildkit/ticketd/internal/model"
)

// CachedStore layers a process-local read-through cache over a Store, keyed
// by thread id. The cache is strictly volatile: it is lost on restart,
// repopulated lazily on lookup miss, and a session's entry is dropped as
// soon as the session closes. The inner Store stays the source of truth.
type CachedStore struct {
	Store

	mu       sync.RWMutex
	sessions map[string]model.TicketSession
}

func NewCachedStore(inner Store) *CachedStore {
	return &CachedStore{
		Store:    inner,
		sessions: make(map[string]model.TicketSession),
	}
}

func cacheKey(botID, guildID, threadID string) string {
	return botID + "/" + guildID + "/" + threadID
}

func (c *CachedStore) SessionByThread(ctx context.Context, botID, guildID, threadID string) (*model.TicketSession, error) {
	key := cacheKey(botID, guildID, threadID)
	c.mu.RLock()
	if sess, ok := c.sessions[key]; ok {
		c.mu.RUnlock()
		copied := sess
		return &copied, nil
	}
	c.mu.RUnlock()

	sess, err := c.Store.SessionByThread(ctx, botID, guildID, threadID)
	if err != nil {
		return nil, err
	}
	c.put(sess)
	return sess, nil
}

func (c *CachedStore) CreateSession(ctx context.Context, sess *model.TicketSession) error {
	if err := c.Store.CreateSession(ctx, sess); err != nil {
		return err
	}
	c.put(sess)
	return nil
}

func (c *CachedStore) SaveSession(ctx context.Context, sess *model.TicketSession) error {
	if err := c.Store.SaveSession(ctx, sess); err != nil {
		return err
	}
	if sess.Status == model.SessionClosed {
		c.evict(sess)
		return nil
	}
	c.put(sess)
	return nil
}

func (c *CachedStore) put(sess *model.TicketSession) {
	c.mu.Lock()
	c.sessions[cacheKey(sess.BotID, sess.GuildID, sess.ThreadID)] = *sess
	c.mu.Unlock()
}

func (c *CachedStore) evict(sess *model.TicketSession) {
	c.mu.Lock()
	delete(c.sessions, cacheKey(sess.BotID, sess.GuildID, sess.ThreadID))
	c.mu.Unlock()
}

// Cached reports whether a session for the thread is currently in the cache.
func (c *CachedStore) Cached(botID, guildID, threadID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.sessions[cacheKey(botID, guildID, threadID)]
	return ok
}
