package contextstore

import (
	"encoding/json"
	"time"
)

func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

// JSONCodec is a Codec that serializes a Context as JSON. The Store has no
// default Codec; it writes to its Durable only when one is configured.
type JSONCodec struct{}

type wireMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

type wireContext struct {
	SessionID     string         `json:"session_id"`
	UserID        string         `json:"user_id"`
	Permissions   []string       `json:"permissions"`
	Metadata      map[string]any `json:"metadata"`
	History       []wireMessage  `json:"history"`
	ActivePlugins []string       `json:"active_plugins"`
	MaxHistory    int            `json:"max_history"`
	CreatedAt     int64          `json:"created_at"`
	UpdatedAt     int64          `json:"updated_at"`
}

// Marshal implements Codec.
func (JSONCodec) Marshal(c *Context) ([]byte, error) {
	w := wireContext{
		SessionID:     c.SessionID,
		UserID:        c.UserID,
		Metadata:      c.Metadata,
		ActivePlugins: c.ActivePlugins,
		MaxHistory:    c.MaxHistory,
		CreatedAt:     c.CreatedAt.Unix(),
		UpdatedAt:     c.UpdatedAt.Unix(),
	}
	for p := range c.Permissions {
		w.Permissions = append(w.Permissions, p)
	}
	for _, m := range c.History {
		w.History = append(w.History, wireMessage{Role: m.Role, Content: m.Content, Timestamp: m.Timestamp.Unix()})
	}
	return json.Marshal(w)
}

// Unmarshal implements Codec.
func (JSONCodec) Unmarshal(raw []byte) (*Context, error) {
	var w wireContext
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, err
	}
	c := &Context{
		SessionID:     w.SessionID,
		UserID:        w.UserID,
		Metadata:      w.Metadata,
		ActivePlugins: w.ActivePlugins,
		MaxHistory:    w.MaxHistory,
		Permissions:   make(map[string]struct{}, len(w.Permissions)),
	}
	for _, p := range w.Permissions {
		c.Permissions[p] = struct{}{}
	}
	for _, m := range w.History {
		c.History = append(c.History, Message{Role: m.Role, Content: m.Content, Timestamp: unixTime(m.Timestamp)})
	}
	c.CreatedAt = unixTime(w.CreatedAt)
	c.UpdatedAt = unixTime(w.UpdatedAt)
	if c.Metadata == nil {
		c.Metadata = make(map[string]any)
	}
	return c, nil
}
