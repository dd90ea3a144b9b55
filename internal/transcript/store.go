package transcript

import (
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"recruitai/interview/internal/models"
)

// Store is the append-only, session-partitioned transcript log. Each
// session gets its own log with its own lock, so no cross-session
// coordination ever happens. Within a session, appends are totally ordered
// by the state machine, which is the only writer.
//
// When a database is attached every segment is also persisted immediately;
// the in-memory log remains the authoritative ordered view while the
// session is live.
type Store struct {
	mu   sync.RWMutex
	logs map[string]*sessionLog
	db   *gorm.DB
}

type sessionLog struct {
	mu       sync.Mutex
	segments []models.TranscriptSegment
	nextSeq  int
	lastTS   time.Time
}

// NewStore creates a transcript store. db may be nil for a purely
// in-memory store (tests).
func NewStore(db *gorm.DB) *Store {
	return &Store{logs: make(map[string]*sessionLog), db: db}
}

func (s *Store) log(sessionID string) *sessionLog {
	s.mu.RLock()
	l, ok := s.logs[sessionID]
	s.mu.RUnlock()
	if ok {
		return l
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok = s.logs[sessionID]; ok {
		return l
	}
	l = &sessionLog{}
	s.logs[sessionID] = l
	return l
}

// Append adds an attributed utterance to a session's log. Timestamps are
// clamped to stay strictly monotonic per session.
func (s *Store) Append(sessionID string, speaker models.Speaker, text string, nodeIndex *int, at time.Time) (models.TranscriptSegment, error) {
	l := s.log(sessionID)
	l.mu.Lock()
	defer l.mu.Unlock()

	if !at.After(l.lastTS) {
		at = l.lastTS.Add(time.Millisecond)
	}

	seg := models.TranscriptSegment{
		SessionID: sessionID,
		Seq:       l.nextSeq,
		Speaker:   speaker,
		Text:      text,
		NodeIndex: nodeIndex,
		Timestamp: at,
	}
	l.nextSeq++
	l.lastTS = at
	l.segments = append(l.segments, seg)

	if s.db != nil {
		if err := s.db.Create(&seg).Error; err != nil {
			return seg, fmt.Errorf("failed to persist transcript segment: %w", err)
		}
	}
	return seg, nil
}

// Segments returns a copy of the ordered log for a session.
func (s *Store) Segments(sessionID string) []models.TranscriptSegment {
	l := s.log(sessionID)
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]models.TranscriptSegment, len(l.segments))
	copy(out, l.segments)
	return out
}

// Recent returns up to n of the newest segments, oldest first. Used for
// the reconnect replay buffer.
func (s *Store) Recent(sessionID string, n int) []models.TranscriptSegment {
	l := s.log(sessionID)
	l.mu.Lock()
	defer l.mu.Unlock()

	if n <= 0 || n > len(l.segments) {
		n = len(l.segments)
	}
	out := make([]models.TranscriptSegment, n)
	copy(out, l.segments[len(l.segments)-n:])
	return out
}

// Load restores a session's log from the database, for resuming a session
// on a fresh instance. No-op when the log already has entries in memory.
func (s *Store) Load(sessionID string) error {
	if s.db == nil {
		return nil
	}
	l := s.log(sessionID)
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.segments) > 0 {
		return nil
	}

	var segments []models.TranscriptSegment
	if err := s.db.Where("session_id = ?", sessionID).Order("seq ASC").Find(&segments).Error; err != nil {
		return fmt.Errorf("failed to load transcript: %w", err)
	}
	l.segments = segments
	if n := len(segments); n > 0 {
		l.nextSeq = segments[n-1].Seq + 1
		l.lastTS = segments[n-1].Timestamp
	}
	return nil
}

// Release drops a finished session's in-memory log. Persisted segments
// are untouched.
func (s *Store) Release(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.logs, sessionID)
}
