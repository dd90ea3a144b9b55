package transcript

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recruitai/interview/internal/models"
	"recruitai/interview/internal/testhelpers"
)

func intPtr(i int) *int { return &i }

func TestAppendAssignsContiguousSequence(t *testing.T) {
	s := NewStore(nil)
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		seg, err := s.Append("sess", models.SpeakerAI, "line", nil, base.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		assert.Equal(t, i, seg.Seq)
	}
	assert.Len(t, s.Segments("sess"), 5)
}

func TestAppendClampsTimestampsMonotonic(t *testing.T) {
	s := NewStore(nil)
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	first, err := s.Append("sess", models.SpeakerAI, "question", nil, base)
	require.NoError(t, err)

	// A wall-clock step backwards must not reorder the log.
	second, err := s.Append("sess", models.SpeakerCandidate, "answer", intPtr(0), base.Add(-time.Minute))
	require.NoError(t, err)
	assert.True(t, second.Timestamp.After(first.Timestamp))
	assert.Equal(t, 1, second.Seq)
}

func TestSessionsAreIsolated(t *testing.T) {
	s := NewStore(nil)
	now := time.Now()

	_, err := s.Append("a", models.SpeakerAI, "for a", nil, now)
	require.NoError(t, err)
	_, err = s.Append("b", models.SpeakerAI, "for b", nil, now)
	require.NoError(t, err)

	assert.Len(t, s.Segments("a"), 1)
	assert.Len(t, s.Segments("b"), 1)
	assert.Equal(t, 0, s.Segments("b")[0].Seq)
}

func TestRecentReturnsNewestOldestFirst(t *testing.T) {
	s := NewStore(nil)
	now := time.Now()
	for i := 0; i < 10; i++ {
		_, err := s.Append("sess", models.SpeakerAI, "line", nil, now.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
	}

	recent := s.Recent("sess", 3)
	require.Len(t, recent, 3)
	assert.Equal(t, 7, recent[0].Seq)
	assert.Equal(t, 9, recent[2].Seq)

	assert.Len(t, s.Recent("sess", 0), 10)
	assert.Len(t, s.Recent("sess", 100), 10)
}

func TestLoadRestoresPersistedLog(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	s := NewStore(db)
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	_, err := s.Append("sess", models.SpeakerAI, "question", intPtr(0), base)
	require.NoError(t, err)
	_, err = s.Append("sess", models.SpeakerCandidate, "answer", intPtr(0), base.Add(time.Second))
	require.NoError(t, err)

	// Simulate a restart: the in-memory log is gone, rows are not.
	s.Release("sess")
	fresh := NewStore(db)
	require.NoError(t, fresh.Load("sess"))

	segments := fresh.Segments("sess")
	require.Len(t, segments, 2)
	assert.Equal(t, models.SpeakerCandidate, segments[1].Speaker)

	// Appends continue the sequence instead of restarting it.
	seg, err := fresh.Append("sess", models.SpeakerAI, "next", intPtr(1), base.Add(2*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 2, seg.Seq)
}

func TestCoverageDerivedFromSegments(t *testing.T) {
	plan := models.QuestionPlan{
		Nodes: []models.QuestionNode{
			{Text: "q0", Required: true},
			{Text: "q1", Required: false},
			{Text: "q2", Required: true},
		},
	}
	s := NewStore(nil)
	now := time.Now()

	_, err := s.Append("sess", models.SpeakerAI, "q0", intPtr(0), now)
	require.NoError(t, err)
	_, err = s.Append("sess", models.SpeakerCandidate, "my answer", intPtr(0), now)
	require.NoError(t, err)
	// AI-attributed and unattributed segments never count as answers.
	_, err = s.Append("sess", models.SpeakerAI, "q2", intPtr(2), now)
	require.NoError(t, err)

	cov := models.ComputeCoverage(plan, s.Segments("sess"))
	assert.Equal(t, 2, cov.TotalRequired)
	assert.Equal(t, 1, cov.AnsweredRequired)
	assert.Equal(t, []int{2}, cov.Outstanding)

	// Replaying the same log yields the same coverage.
	again := models.ComputeCoverage(plan, s.Segments("sess"))
	assert.Equal(t, cov, again)
}
