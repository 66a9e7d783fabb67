package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"omnichat/internal/redis"
)

const snapshotTTL = 30 * time.Minute

// Snapshot is the redis view of an in-flight generation, written on every
// chunk so reconnecting clients can catch up without waiting for the row to
// finalize.
type Snapshot struct {
	ConversationID int64     `json:"conversation_id"`
	MessageID      int64     `json:"message_id"`
	Content        string    `json:"content"`
	Reasoning      string    `json:"reasoning,omitempty"`
	Status         string    `json:"status"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type snapshotCache struct {
	client *redis.Client
}

func newSnapshotCache(client *redis.Client) *snapshotCache {
	return &snapshotCache{client: client}
}

func snapshotKey(conversationID int64) string {
	return fmt.Sprintf("gen:snapshot:%d", conversationID)
}

func (c *snapshotCache) save(snap Snapshot) {
	if c == nil || c.client == nil {
		return
	}
	snap.UpdatedAt = time.Now()
	data, err := json.Marshal(snap)
	if err != nil {
		log.Printf("snapshot marshal failed: %v", err)
		return
	}
	if err := c.client.Set(context.Background(), snapshotKey(snap.ConversationID), data, snapshotTTL); err != nil {
		log.Printf("snapshot save failed: %v", err)
	}
}

// Load returns the live snapshot for a conversation, if one exists.
func (c *snapshotCache) load(conversationID int64) (Snapshot, bool) {
	if c == nil || c.client == nil {
		return Snapshot{}, false
	}
	raw, err := c.client.Get(context.Background(), snapshotKey(conversationID))
	if err != nil {
		if err != redis.ErrCacheMiss {
			log.Printf("snapshot load failed: %v", err)
		}
		return Snapshot{}, false
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		log.Printf("snapshot decode failed: %v", err)
		return Snapshot{}, false
	}
	return snap, true
}

func (c *snapshotCache) invalidate(conversationID int64) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(context.Background(), snapshotKey(conversationID)); err != nil && err != redis.ErrCacheMiss {
		log.Printf("snapshot invalidate failed: %v", err)
	}
}
