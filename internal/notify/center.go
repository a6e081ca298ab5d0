// Package notify provides the NotificationCenter: the durable, append-mostly
// store of notifications with read/unread and filtering semantics. It is the
// sole owner of the notification collection; the dispatcher and the external
// collaborators append through Add, presentation consumers only read.
package notify

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/tartampluch/go-reminder/internal/config"
	"github.com/tartampluch/go-reminder/internal/engine"
	"github.com/tartampluch/go-reminder/internal/model"
)

// Center is safe for concurrent use. Reads return snapshots, so a consumer
// iterating a listing is never affected by a concurrent clear.
type Center struct {
	clock    engine.Clock
	onChange func()

	mu    sync.RWMutex
	items []model.Notification
	seq   uint64 // insertion counter; breaks CreatedAt ties newest-first
	order map[string]uint64
}

// NewCenter creates an empty notification center. onChange, when non-nil, is
// invoked after every mutation (the persistence dirty signal).
func NewCenter(clock engine.Clock, onChange func()) *Center {
	return &Center{
		clock:    clock,
		onChange: onChange,
		order:    make(map[string]uint64),
	}
}

// Add appends a notification and returns the assigned identifier. The read
// flag is forced to unread; a zero creation instant is stamped with the
// current clock. Each Add is atomic with respect to concurrent readers.
func (c *Center) Add(n model.Notification) string {
	n.ID = uuid.NewString()
	n.Read = false
	if n.CreatedAt.IsZero() {
		n.CreatedAt = c.clock.Now()
	}

	c.mu.Lock()
	c.seq++
	c.order[n.ID] = c.seq
	c.items = append(c.items, n)
	c.mu.Unlock()

	slog.Info(config.MsgNotifAdded,
		config.LogKeyComponent, config.CompNotify,
		config.LogKeyID, n.ID,
		config.LogKeyKind, n.Kind,
	)
	c.changed()
	return n.ID
}

// List returns the notifications matching the filter, newest first.
// The result is a snapshot; later mutations do not affect it.
func (c *Center) List(f model.Filter) []model.Notification {
	c.mu.RLock()
	out := make([]model.Notification, 0, len(c.items))
	for i := range c.items {
		if f.Matches(&c.items[i]) {
			out = append(out, c.items[i])
		}
	}
	order := make(map[string]uint64, len(out))
	for _, n := range out {
		order[n.ID] = c.order[n.ID]
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return order[out[i].ID] > order[out[j].ID]
	})
	return out
}

// UnreadCount is derived from the collection on every call; it can never
// drift from the underlying notifications.
func (c *Center) UnreadCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	count := 0
	for i := range c.items {
		if !c.items[i].Read {
			count++
		}
	}
	return count
}

// MarkRead flags a notification as read. Idempotent: already-read or missing
// identifiers are a no-op, never an error, since deletion races with the
// presentation layer are expected.
func (c *Center) MarkRead(id string) {
	c.setRead(id, true)
}

// MarkUnread flags a notification as unread. Same no-op semantics as MarkRead.
func (c *Center) MarkUnread(id string) {
	c.setRead(id, false)
}

func (c *Center) setRead(id string, read bool) {
	c.mu.Lock()
	changed := false
	for i := range c.items {
		if c.items[i].ID == id {
			changed = c.items[i].Read != read
			c.items[i].Read = read
			break
		}
	}
	c.mu.Unlock()

	if changed {
		c.changed()
	}
}

// MarkAllRead flags every notification of the given kind as read.
// An empty kind covers all notifications.
func (c *Center) MarkAllRead(kind model.SourceKind) {
	c.mu.Lock()
	changed := false
	for i := range c.items {
		if kind != "" && c.items[i].Kind != kind {
			continue
		}
		if !c.items[i].Read {
			c.items[i].Read = true
			changed = true
		}
	}
	c.mu.Unlock()

	if changed {
		c.changed()
	}
}

// Clear removes one notification. Missing identifiers are a no-op.
func (c *Center) Clear(id string) {
	c.mu.Lock()
	removed := false
	for i := range c.items {
		if c.items[i].ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			delete(c.order, id)
			removed = true
			break
		}
	}
	c.mu.Unlock()

	if removed {
		slog.Info(config.MsgNotifRemoved,
			config.LogKeyComponent, config.CompNotify,
			config.LogKeyID, id,
		)
		c.changed()
	}
}

// ClearAll removes every notification.
func (c *Center) ClearAll() {
	c.mu.Lock()
	count := len(c.items)
	c.items = nil
	c.order = make(map[string]uint64)
	c.mu.Unlock()

	slog.Info(config.MsgNotifCleared,
		config.LogKeyComponent, config.CompNotify,
		config.LogKeyCount, count,
	)
	c.changed()
}

// ClearKind removes every notification of one source kind.
func (c *Center) ClearKind(kind model.SourceKind) {
	c.mu.Lock()
	kept := c.items[:0]
	count := 0
	for _, n := range c.items {
		if n.Kind == kind {
			delete(c.order, n.ID)
			count++
			continue
		}
		kept = append(kept, n)
	}
	c.items = kept
	c.mu.Unlock()

	if count > 0 {
		slog.Info(config.MsgNotifCleared,
			config.LogKeyComponent, config.CompNotify,
			config.LogKeyKind, kind,
			config.LogKeyCount, count,
		)
		c.changed()
	}
}

// Restore loads persisted notification history verbatim, preserving
// identifiers and read flags. Used once at startup.
func (c *Center) Restore(ns []model.Notification) {
	c.mu.Lock()
	for _, n := range ns {
		if n.ID == "" {
			continue
		}
		c.seq++
		c.order[n.ID] = c.seq
		c.items = append(c.items, n)
	}
	c.mu.Unlock()
}

func (c *Center) changed() {
	if c.onChange != nil {
		c.onChange()
	}
}
