// Package memoryactor implements the Memory Actor described in section
// 4.5: per-session memory plus a capped, similarity-scored skill cache of
// previously successful plans. Grounded in the teacher's agents/runtime/memory.Store
// contract (event-log shape, durable-backend-friendly interfaces) and in
// original_source's orchestrator/actors/memory.py for the skill-eviction and
// similarity-scoring semantics the teacher's event log does not itself
// specify.
package memoryactor

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// SessionRecord is the per-session memory collection entry.
type SessionRecord struct {
	SessionID string
	CreatedAt time.Time
	UpdatedAt time.Time
	History   []Message
	Metadata  map[string]any
}

// Message is one turn appended to a SessionRecord's history.
type Message struct {
	Role      string
	Content   string
	Timestamp time.Time
}

// Skill is a Memory entry describing a previously successful plan.
type Skill struct {
	ID                 string
	Name               string
	TriggerPatterns    []string
	ExecutionTemplate  map[string]any
	SuccessCount       int
	FailureCount       int
	CreatedAt          time.Time
	LastUsed           time.Time
}

// ScoredSkill pairs a Skill with its similarity score from
// FindSimilarSkills.
type ScoredSkill struct {
	Skill Skill
	Score int
}

const (
	// DefaultMaxSessionHistory bounds a session's stored history.
	DefaultMaxSessionHistory = 100
	// DefaultMaxSkills bounds the skill collection; eviction removes the
	// least-used entries once exceeded.
	DefaultMaxSkills = 200
)

// Memory holds the two collections described in section 4.5: session
// memory and skill memory. All methods are safe for concurrent use.
type Memory struct {
	mu                 sync.Mutex
	sessions           map[string]*SessionRecord
	skills             []Skill
	maxSessionHistory  int
	maxSkills          int
	nextSkillSeq       int
}

// Option configures a Memory.
type Option func(*Memory)

// WithMaxSessionHistory overrides DefaultMaxSessionHistory.
func WithMaxSessionHistory(n int) Option {
	return func(m *Memory) { m.maxSessionHistory = n }
}

// WithMaxSkills overrides DefaultMaxSkills.
func WithMaxSkills(n int) Option {
	return func(m *Memory) { m.maxSkills = n }
}

// New constructs an empty Memory.
func New(opts ...Option) *Memory {
	m := &Memory{
		sessions:          make(map[string]*SessionRecord),
		maxSessionHistory: DefaultMaxSessionHistory,
		maxSkills:         DefaultMaxSkills,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// StoreSession appends msg to sessionID's history, creating the record if
// needed, truncating to maxSessionHistory (oldest dropped).
func (m *Memory) StoreSession(sessionID string, msg Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	rec, ok := m.sessions[sessionID]
	if !ok {
		rec = &SessionRecord{SessionID: sessionID, CreatedAt: msg.Timestamp, Metadata: make(map[string]any)}
		m.sessions[sessionID] = rec
	}
	rec.History = append(rec.History, msg)
	if over := len(rec.History) - m.maxSessionHistory; over > 0 {
		rec.History = rec.History[over:]
	}
	rec.UpdatedAt = msg.Timestamp
}

// GetSession returns the record for sessionID, or false if none exists.
func (m *Memory) GetSession(sessionID string) (SessionRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.sessions[sessionID]
	if !ok {
		return SessionRecord{}, false
	}
	cp := *rec
	cp.History = append([]Message(nil), rec.History...)
	return cp, true
}

// RecordSkill appends skill to the collection, evicting the least-used
// entries (sorted by SuccessCount ascending) once the collection exceeds
// maxSkills.
func (m *Memory) RecordSkill(skill Skill) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if skill.CreatedAt.IsZero() {
		skill.CreatedAt = time.Now()
	}
	if skill.ID == "" {
		m.nextSkillSeq++
		skill.ID = skillID(m.nextSkillSeq)
	}
	m.skills = append(m.skills, skill)
	if over := len(m.skills) - m.maxSkills; over > 0 {
		sort.SliceStable(m.skills, func(i, j int) bool {
			return m.skills[i].SuccessCount < m.skills[j].SuccessCount
		})
		m.skills = m.skills[over:]
	}
}

// FindSimilarSkills scores every skill against query: +2 if query appears
// in the skill's name, +1 per trigger pattern that matches query as a
// case-insensitive substring in either direction. Returns the top `limit`
// skills with score > 0, highest first.
func (m *Memory) FindSimilarSkills(query string, limit int) []ScoredSkill {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := strings.ToLower(query)

	var scored []ScoredSkill
	for _, s := range m.skills {
		score := 0
		if strings.Contains(q, strings.ToLower(s.Name)) || strings.Contains(strings.ToLower(s.Name), q) {
			score += 2
		}
		for _, pattern := range s.TriggerPatterns {
			p := strings.ToLower(pattern)
			if strings.Contains(q, p) || strings.Contains(p, q) {
				score++
			}
		}
		if score > 0 {
			scored = append(scored, ScoredSkill{Skill: s, Score: score})
		}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

// UpdateSkillStats increments the success or failure counter for id and
// touches LastUsed. A no-op if id is unknown.
func (m *Memory) UpdateSkillStats(id string, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.skills {
		if m.skills[i].ID != id {
			continue
		}
		if success {
			m.skills[i].SuccessCount++
		} else {
			m.skills[i].FailureCount++
		}
		m.skills[i].LastUsed = time.Now()
		return
	}
}

func skillID(seq int) string {
	return fmt.Sprintf("skill-%d", seq)
}
