package api

// Profile is the donor form submitted on the first wizard step.
type Profile struct {
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Gender    string `json:"gender"`
	BirthYear int    `json:"birth_year"`
	Region    string `json:"region"`
}

// User is a created donor.
type User struct {
	ID string `json:"id"`
	Profile
}

// Keyword is one keyword the donor repeats.
type Keyword struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// KeywordList is the response of GET /keyword.
type KeywordList struct {
	Keywords []Keyword `json:"keywords"`
	Total    int       `json:"total"`
}

// Sentence is one assigned sentence containing a keyword.
type Sentence struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Keyword string `json:"keyword"`
}

// SentenceAssignment is the response of GET /sentence/assign/{userId}.
type SentenceAssignment struct {
	Sentences []Sentence `json:"sentences"`
}

// Audio is an encoded clip ready for upload.
type Audio struct {
	Data        []byte
	Filename    string
	ContentType string
}

// KeywordUpload is one keyword repeat.
type KeywordUpload struct {
	UserID      string
	Keyword     string
	KeywordID   string
	RepeatIndex int
	Audio       Audio
}

// KeywordUploadResult is the collaborator's verdict on a keyword repeat.
type KeywordUploadResult struct {
	Accepted bool   `json:"accepted"`
	ID       string `json:"id,omitempty"`
}

// SentenceUpload is one sentence recording with its keyword span in seconds.
type SentenceUpload struct {
	UserID       string
	SentenceID   string
	KeywordStart float64
	KeywordEnd   float64
	// Duration is the clip length in seconds, used by reviewers' selectors.
	Duration float64
	Audio    Audio
}

// SentenceUploadResult is the response of POST /sentence/upload.
type SentenceUploadResult struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
}

// Session step names used by progress mirroring.
const (
	StepProfile    = "profile"
	StepMicCheck   = "mic_check"
	StepKeyword    = "keyword"
	StepSentence   = "sentence"
	StepCrossCheck = "cross_check"
)

// Session statuses.
const (
	SessionInProgress = "in_progress"
	SessionCompleted  = "completed"
	SessionCancelled  = "cancelled"
)

// Session is the remote mirror of a wizard run.
type Session struct {
	ID      string `json:"id"`
	UserID  string `json:"user_id"`
	Step    string `json:"step"`
	Percent int    `json:"percent"`
	Status  string `json:"status"`
}

// SessionStart is the body of PUT /user/session/start.
type SessionStart struct {
	UserID string `json:"user_id"`
}

// SessionProgress is the body of PUT /user/session/progress.
type SessionProgress struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Step      string `json:"step"`
	Percent   int    `json:"percent"`
}

// SessionRef identifies a session for complete and cancel.
type SessionRef struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

// CrossCheckItem is another donor's recording to review.
type CrossCheckItem struct {
	ID         string  `json:"id"`
	SentenceID string  `json:"sentence_id"`
	Text       string  `json:"text"`
	Keyword    string  `json:"keyword"`
	AudioURL   string  `json:"audio_url"`
	Duration   float64 `json:"duration"`
}

// CrossCheckAssignment is the response of GET /crosscheck/assign/{userId}.
type CrossCheckAssignment struct {
	Items []CrossCheckItem `json:"items"`
}

// CrossCheckReview is the body of POST /crosscheck/submit. Unclear reviews
// carry no span.
type CrossCheckReview struct {
	UserID       string   `json:"user_id"`
	RecordingID  string   `json:"recording_id"`
	KeywordStart *float64 `json:"keyword_start,omitempty"`
	KeywordEnd   *float64 `json:"keyword_end,omitempty"`
	Unclear      bool     `json:"unclear"`
}
