package server

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/alkime/voicebank/internal/api"
	"github.com/alkime/voicebank/internal/step"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const mediaPrefix = "/media"

// spanTolerance absorbs the three-decimal rounding of multipart span fields.
const spanTolerance = 1e-3

func (s *Server) handleCreateUser(c *gin.Context) {
	var p api.Profile
	if err := c.ShouldBindJSON(&p); err != nil {
		badRequest(c, err)
		return
	}

	if err := step.ValidateProfile(p, time.Now()); err != nil {
		badRequest(c, err)
		return
	}

	u := s.store.CreateUser(p)
	s.metrics.Users.Add(c.Request.Context(), 1)
	s.logger.Info("donor created", "user_id", u.ID, "region", u.Region)

	c.JSON(http.StatusCreated, u)
}

func (s *Server) handleKeywords(c *gin.Context) {
	c.JSON(http.StatusOK, api.KeywordList{
		Keywords: s.corpus.Keywords,
		Total:    len(s.corpus.Keywords),
	})
}

func (s *Server) handleKeywordUpload(c *gin.Context) {
	userID := c.PostForm("user_id")
	keywordID := c.PostForm("keyword_id")
	repeat, err := strconv.Atoi(c.PostForm("repeat_index"))
	if userID == "" || keywordID == "" || err != nil {
		badRequest(c, errors.New("user_id, keyword_id and repeat_index are required"))
		return
	}

	if _, ok := s.store.User(userID); !ok {
		notFound(c, "user", userID)
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, fmt.Errorf("missing audio file: %w", err))
		return
	}

	ctx := c.Request.Context()
	_, known := s.corpus.keyword(keywordID)
	if !known || repeat < 0 || fh.Size == 0 {
		s.metrics.RecordUpload(ctx, "keyword", false, int(fh.Size))
		s.logger.Info("keyword repeat rejected",
			"user_id", userID,
			"keyword_id", keywordID,
			"repeat_index", repeat,
			"size", fh.Size)
		c.JSON(http.StatusOK, api.KeywordUploadResult{Accepted: false})
		return
	}

	file, err := s.saveMedia(c, fh)
	if err != nil {
		s.internalError(c, err)
		return
	}

	id := s.store.AddKeyword(KeywordRecording{
		UserID:      userID,
		KeywordID:   keywordID,
		RepeatIndex: repeat,
		File:        file,
	})
	s.metrics.RecordUpload(ctx, "keyword", true, int(fh.Size))

	c.JSON(http.StatusOK, api.KeywordUploadResult{Accepted: true, ID: id})
}

func (s *Server) handleAssignSentences(c *gin.Context) {
	userID := c.Param("userId")

	ids, err := s.store.Assignment(userID, s.pickSentences)
	if err != nil {
		s.storeError(c, err, "user", userID)
		return
	}

	out := api.SentenceAssignment{Sentences: make([]api.Sentence, 0, len(ids))}
	for _, id := range ids {
		if sent, ok := s.corpus.sentence(id); ok {
			out.Sentences = append(out.Sentences, sent)
		}
	}

	c.JSON(http.StatusOK, out)
}

// pickSentences takes the next SentencesPerUser sentences from the corpus,
// rotating the starting point for each assignment.
func (s *Server) pickSentences() []string {
	all := s.corpus.Sentences
	n := min(s.config.SentencesPerUser, len(all))
	if n <= 0 {
		return nil
	}

	offset := int(s.assigned.Add(1)-1) * n
	ids := make([]string, n)
	for i := range n {
		ids[i] = all[(offset+i)%len(all)].ID
	}
	return ids
}

func (s *Server) handleSentenceUpload(c *gin.Context) {
	userID := c.PostForm("user_id")
	sentenceID := c.PostForm("sentence_id")
	if userID == "" || sentenceID == "" {
		badRequest(c, errors.New("user_id and sentence_id are required"))
		return
	}

	start, errStart := strconv.ParseFloat(c.PostForm("keyword_start"), 64)
	end, errEnd := strconv.ParseFloat(c.PostForm("keyword_end"), 64)
	if err := errors.Join(errStart, errEnd); err != nil {
		badRequest(c, fmt.Errorf("invalid keyword span: %w", err))
		return
	}

	duration := 0.0
	if raw := c.PostForm("duration"); raw != "" {
		d, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			badRequest(c, fmt.Errorf("invalid duration: %w", err))
			return
		}
		duration = d
	}

	if err := checkSpan(start, end, duration); err != nil {
		badRequest(c, err)
		return
	}

	if _, ok := s.store.User(userID); !ok {
		notFound(c, "user", userID)
		return
	}
	if _, ok := s.corpus.sentence(sentenceID); !ok {
		notFound(c, "sentence", sentenceID)
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, fmt.Errorf("missing audio file: %w", err))
		return
	}

	ctx := c.Request.Context()
	if fh.Size == 0 {
		s.metrics.RecordUpload(ctx, "sentence", false, 0)
		c.JSON(http.StatusOK, api.SentenceUploadResult{Success: false})
		return
	}

	file, err := s.saveMedia(c, fh)
	if err != nil {
		s.internalError(c, err)
		return
	}

	id := s.store.AddSentence(SentenceRecording{
		UserID:       userID,
		SentenceID:   sentenceID,
		KeywordStart: start,
		KeywordEnd:   end,
		Duration:     duration,
		File:         file,
	})
	s.metrics.RecordUpload(ctx, "sentence", true, int(fh.Size))

	c.JSON(http.StatusOK, api.SentenceUploadResult{Success: true, ID: id})
}

func (s *Server) handleSessionStart(c *gin.Context) {
	var req api.SessionStart
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" {
		badRequest(c, errors.New("user_id is required"))
		return
	}

	sess, created, err := s.store.StartSession(req.UserID)
	if err != nil {
		s.storeError(c, err, "user", req.UserID)
		return
	}
	if created {
		s.metrics.RecordSessionEvent(c.Request.Context(), "start")
		s.logger.Info("session started", "session_id", sess.ID, "user_id", sess.UserID)
	}

	c.JSON(http.StatusOK, sess)
}

func (s *Server) handleSessionProgress(c *gin.Context) {
	var req api.SessionProgress
	if err := c.ShouldBindJSON(&req); err != nil || req.SessionID == "" {
		badRequest(c, errors.New("session_id is required"))
		return
	}
	if req.Percent < 0 || req.Percent > 100 {
		badRequest(c, fmt.Errorf("percent %d out of range", req.Percent))
		return
	}

	if err := s.store.UpdateProgress(req); err != nil {
		s.storeError(c, err, "session", req.SessionID)
		return
	}
	s.metrics.RecordSessionEvent(c.Request.Context(), "progress")

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleSessionComplete(c *gin.Context) {
	s.endSession(c, api.SessionCompleted, "complete")
}

func (s *Server) handleSessionCancel(c *gin.Context) {
	s.endSession(c, api.SessionCancelled, "cancel")
}

func (s *Server) endSession(c *gin.Context, status, event string) {
	var ref api.SessionRef
	if err := c.ShouldBindJSON(&ref); err != nil || ref.SessionID == "" {
		badRequest(c, errors.New("session_id is required"))
		return
	}

	if err := s.store.EndSession(ref, status); err != nil {
		s.storeError(c, err, "session", ref.SessionID)
		return
	}
	s.metrics.RecordSessionEvent(c.Request.Context(), event)
	s.logger.Info("session ended", "session_id", ref.SessionID, "status", status)

	c.JSON(http.StatusOK, gin.H{"status": status})
}

func (s *Server) handleSessionCurrent(c *gin.Context) {
	userID := c.Query("user_id")
	sess, err := s.store.CurrentSession(userID)
	if err != nil {
		s.storeError(c, err, "session for user", userID)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (s *Server) handleSessionCurrentByPhone(c *gin.Context) {
	phone := c.Query("phone")
	sess, err := s.store.CurrentSessionByPhone(phone)
	if err != nil {
		s.storeError(c, err, "session for phone", phone)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (s *Server) handleAssignCrossCheck(c *gin.Context) {
	userID := c.Param("userId")

	recs, err := s.store.Reviewable(userID, s.config.CrossChecksPerUser)
	if err != nil {
		s.storeError(c, err, "user", userID)
		return
	}

	out := api.CrossCheckAssignment{Items: make([]api.CrossCheckItem, 0, len(recs))}
	for _, rec := range recs {
		sent, _ := s.corpus.sentence(rec.SentenceID)
		out.Items = append(out.Items, api.CrossCheckItem{
			ID:         rec.ID,
			SentenceID: rec.SentenceID,
			Text:       sent.Text,
			Keyword:    sent.Keyword,
			AudioURL:   mediaPrefix + "/" + rec.File,
			Duration:   rec.Duration,
		})
	}

	c.JSON(http.StatusOK, out)
}

func (s *Server) handleSubmitCrossCheck(c *gin.Context) {
	var req api.CrossCheckReview
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" || req.RecordingID == "" {
		badRequest(c, errors.New("user_id and recording_id are required"))
		return
	}

	review := Review{UserID: req.UserID, RecordingID: req.RecordingID, Unclear: req.Unclear}
	if !req.Unclear {
		if req.KeywordStart == nil || req.KeywordEnd == nil {
			badRequest(c, errors.New("keyword_start and keyword_end are required unless unclear"))
			return
		}
		if err := checkSpan(*req.KeywordStart, *req.KeywordEnd, 0); err != nil {
			badRequest(c, err)
			return
		}
		review.KeywordStart, review.KeywordEnd = *req.KeywordStart, *req.KeywordEnd
	}

	if err := s.store.AddReview(review); err != nil {
		s.storeError(c, err, "recording", req.RecordingID)
		return
	}
	s.metrics.RecordCrossCheck(c.Request.Context(), req.Unclear)

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// checkSpan enforces the keyword region rules. A non-positive duration skips
// the upper bound check.
func checkSpan(start, end, duration float64) error {
	switch {
	case start < 0:
		return fmt.Errorf("keyword_start %.3f is negative", start)
	case end <= start:
		return fmt.Errorf("keyword_end %.3f must be after keyword_start %.3f", end, start)
	case end-start > step.MaxKeywordSpan+spanTolerance:
		return step.ErrRegionTooLong
	case duration > 0 && end > duration+spanTolerance:
		return fmt.Errorf("keyword_end %.3f is past the clip end %.3f", end, duration)
	}
	return nil
}

// saveMedia stores an upload under a fresh name in the media directory and
// returns that name.
func (s *Server) saveMedia(c *gin.Context, fh *multipart.FileHeader) (string, error) {
	if err := os.MkdirAll(s.config.MediaDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create media directory: %w", err)
	}

	ext := filepath.Ext(fh.Filename)
	if ext == "" {
		ext = ".mp3"
	}
	name := uuid.NewString() + ext

	if err := c.SaveUploadedFile(fh, filepath.Join(s.config.MediaDir, name)); err != nil {
		return "", fmt.Errorf("failed to save upload: %w", err)
	}
	return name, nil
}

func (s *Server) storeError(c *gin.Context, err error, what, id string) {
	switch {
	case errors.Is(err, ErrNotFound):
		notFound(c, what, id)
	case errors.Is(err, ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("%s %s is no longer in progress", what, id)})
	default:
		s.internalError(c, err)
	}
}

func (s *Server) internalError(c *gin.Context, err error) {
	s.logger.Error("request failed", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func notFound(c *gin.Context, what, id string) {
	c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("%s %q not found", what, id)})
}
