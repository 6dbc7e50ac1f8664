package server

import (
	"errors"
	"sync"

	"github.com/alkime/voicebank/internal/api"
	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned for unknown users, sessions and recordings.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a session is no longer in progress.
	ErrConflict = errors.New("conflict")
)

// SentenceRecording is an uploaded sentence clip with its keyword span.
type SentenceRecording struct {
	ID           string
	UserID       string
	SentenceID   string
	KeywordStart float64
	KeywordEnd   float64
	Duration     float64
	File         string
}

// KeywordRecording is an uploaded keyword repeat.
type KeywordRecording struct {
	ID          string
	UserID      string
	KeywordID   string
	RepeatIndex int
	File        string
}

// Review is a donor's verdict on another donor's sentence recording.
type Review struct {
	UserID       string
	RecordingID  string
	KeywordStart float64
	KeywordEnd   float64
	Unclear      bool
}

// Store keeps everything the sandbox collaborator knows in memory.
type Store struct {
	mu          sync.Mutex
	users       map[string]api.User
	phones      map[string]string
	sessions    map[string]*api.Session
	assignments map[string][]string
	keywords    []KeywordRecording
	sentences   []SentenceRecording
	reviews     []Review
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		users:       make(map[string]api.User),
		phones:      make(map[string]string),
		sessions:    make(map[string]*api.Session),
		assignments: make(map[string][]string),
	}
}

// CreateUser stores a profile under a fresh ID. A phone already on file is
// re-pointed to the new user.
func (s *Store) CreateUser(p api.Profile) api.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := api.User{ID: uuid.NewString(), Profile: p}
	s.users[u.ID] = u
	s.phones[p.Phone] = u.ID
	return u
}

// User returns a stored user.
func (s *Store) User(id string) (api.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	return u, ok
}

// UserCount returns the number of stored users.
func (s *Store) UserCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

// Assignment returns the sentence IDs assigned to a user, assigning them with
// pick on first use.
func (s *Store) Assignment(userID string, pick func() []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return nil, ErrNotFound
	}
	if ids, ok := s.assignments[userID]; ok {
		return ids, nil
	}

	ids := pick()
	s.assignments[userID] = ids
	return ids, nil
}

// AddKeyword records a keyword upload and returns its ID.
func (s *Store) AddKeyword(r KeywordRecording) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	r.ID = uuid.NewString()
	s.keywords = append(s.keywords, r)
	return r.ID
}

// AddSentence records a sentence upload and returns its ID.
func (s *Store) AddSentence(r SentenceRecording) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	r.ID = uuid.NewString()
	s.sentences = append(s.sentences, r)
	return r.ID
}

// Keywords returns a copy of the keyword uploads.
func (s *Store) Keywords() []KeywordRecording {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]KeywordRecording(nil), s.keywords...)
}

// Sentences returns a copy of the sentence uploads.
func (s *Store) Sentences() []SentenceRecording {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SentenceRecording(nil), s.sentences...)
}

// Reviewable returns up to limit sentence recordings made by other users that
// userID has not reviewed yet, oldest first.
func (s *Store) Reviewable(userID string, limit int) ([]SentenceRecording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return nil, ErrNotFound
	}

	reviewed := make(map[string]bool)
	for _, r := range s.reviews {
		if r.UserID == userID {
			reviewed[r.RecordingID] = true
		}
	}

	var out []SentenceRecording
	for _, rec := range s.sentences {
		if len(out) >= limit {
			break
		}
		if rec.UserID == userID || reviewed[rec.ID] {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// AddReview stores a review of a known sentence recording.
func (s *Store) AddReview(r Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[r.UserID]; !ok {
		return ErrNotFound
	}
	for _, rec := range s.sentences {
		if rec.ID == r.RecordingID {
			s.reviews = append(s.reviews, r)
			return nil
		}
	}
	return ErrNotFound
}

// Reviews returns a copy of the stored reviews.
func (s *Store) Reviews() []Review {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Review(nil), s.reviews...)
}

// StartSession returns the user's in-progress session, creating one if none
// exists. created reports whether a new session was opened.
func (s *Store) StartSession(userID string) (sess api.Session, created bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return api.Session{}, false, ErrNotFound
	}
	if cur := s.currentLocked(userID); cur != nil {
		return *cur, false, nil
	}

	ns := &api.Session{
		ID:     uuid.NewString(),
		UserID: userID,
		Step:   api.StepProfile,
		Status: api.SessionInProgress,
	}
	s.sessions[ns.ID] = ns
	return *ns, true, nil
}

// UpdateProgress mirrors a step change onto an in-progress session.
func (s *Store) UpdateProgress(p api.SessionProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.openLocked(p.SessionID, p.UserID)
	if err != nil {
		return err
	}
	sess.Step = p.Step
	sess.Percent = p.Percent
	return nil
}

// EndSession moves an in-progress session to status.
func (s *Store) EndSession(ref api.SessionRef, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.openLocked(ref.SessionID, ref.UserID)
	if err != nil {
		return err
	}
	sess.Status = status
	if status == api.SessionCompleted {
		sess.Percent = 100
	}
	return nil
}

// Session returns a session by ID.
func (s *Store) Session(id string) (api.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return api.Session{}, false
	}
	return *sess, true
}

// CurrentSession returns the user's in-progress session.
func (s *Store) CurrentSession(userID string) (api.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur := s.currentLocked(userID); cur != nil {
		return *cur, nil
	}
	return api.Session{}, ErrNotFound
}

// CurrentSessionByPhone returns the in-progress session of the user last
// registered with phone.
func (s *Store) CurrentSessionByPhone(phone string) (api.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID, ok := s.phones[phone]
	if !ok {
		return api.Session{}, ErrNotFound
	}
	if cur := s.currentLocked(userID); cur != nil {
		return *cur, nil
	}
	return api.Session{}, ErrNotFound
}

func (s *Store) currentLocked(userID string) *api.Session {
	for _, sess := range s.sessions {
		if sess.UserID == userID && sess.Status == api.SessionInProgress {
			return sess
		}
	}
	return nil
}

func (s *Store) openLocked(sessionID, userID string) (*api.Session, error) {
	sess, ok := s.sessions[sessionID]
	if !ok || (userID != "" && sess.UserID != userID) {
		return nil, ErrNotFound
	}
	if sess.Status != api.SessionInProgress {
		return nil, ErrConflict
	}
	return sess, nil
}
