package memoryactor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStoreSessionTruncatesHistory(t *testing.T) {
	m := New(WithMaxSessionHistory(2))
	m.StoreSession("s1", Message{Role: "user", Content: "one"})
	m.StoreSession("s1", Message{Role: "user", Content: "two"})
	m.StoreSession("s1", Message{Role: "user", Content: "three"})

	rec, ok := m.GetSession("s1")
	require.True(t, ok)
	require.Len(t, rec.History, 2)
	require.Equal(t, "two", rec.History[0].Content)
	require.Equal(t, "three", rec.History[1].Content)
}

func TestGetSessionUnknownReturnsFalse(t *testing.T) {
	m := New()
	_, ok := m.GetSession("missing")
	require.False(t, ok)
}

func TestRecordSkillEvictsLeastUsed(t *testing.T) {
	m := New(WithMaxSkills(2))
	m.RecordSkill(Skill{Name: "a", SuccessCount: 5})
	m.RecordSkill(Skill{Name: "b", SuccessCount: 1})
	m.RecordSkill(Skill{Name: "c", SuccessCount: 10})

	scored := m.FindSimilarSkills("a b c", 10)
	names := make([]string, len(scored))
	for i, s := range scored {
		names[i] = s.Skill.Name
	}
	require.NotContains(t, names, "b")
}

func TestFindSimilarSkillsScoring(t *testing.T) {
	m := New()
	m.RecordSkill(Skill{Name: "web search", TriggerPatterns: []string{"search the web", "look up"}})
	m.RecordSkill(Skill{Name: "unrelated"})

	scored := m.FindSimilarSkills("please search the web for cats", 10)
	require.Len(t, scored, 1)
	require.Equal(t, "web search", scored[0].Skill.Name)
	require.Equal(t, 1, scored[0].Score)
}

func TestUpdateSkillStats(t *testing.T) {
	m := New()
	m.RecordSkill(Skill{ID: "fixed-id", Name: "x"})
	m.UpdateSkillStats("fixed-id", true)
	m.UpdateSkillStats("fixed-id", false)

	scored := m.FindSimilarSkills("x", 10)
	require.Len(t, scored, 1)
	require.Equal(t, 1, scored[0].Skill.SuccessCount)
	require.Equal(t, 1, scored[0].Skill.FailureCount)
}
