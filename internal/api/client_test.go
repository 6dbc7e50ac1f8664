package api_test

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alkime/voicebank/internal/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, mux *http.ServeMux) *api.Client {
	t.Helper()

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return api.New(srv.URL + "/")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestCreateUser(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /user", func(w http.ResponseWriter, r *http.Request) {
		var p api.Profile
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		writeJSON(w, api.User{ID: "u-1", Profile: p})
	})

	c := newTestClient(t, mux)
	u, err := c.CreateUser(t.Context(), api.Profile{Name: "Lan", Phone: "0901234567", BirthYear: 1990})
	require.NoError(t, err)
	assert.Equal(t, "u-1", u.ID)
	assert.Equal(t, "Lan", u.Name)
	assert.Equal(t, 1990, u.BirthYear)
}

func TestUploadKeyword_Multipart(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /keyword/upload", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "u-1", r.FormValue("user_id"))
		assert.Equal(t, "hey", r.FormValue("keyword"))
		assert.Equal(t, "k-1", r.FormValue("keyword_id"))
		assert.Equal(t, "3", r.FormValue("repeat_index"))

		f, fh, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "k-1-3.mp3", fh.Filename)
		assert.Equal(t, []byte{1, 2, 3}, data)

		writeJSON(w, api.KeywordUploadResult{Accepted: true})
	})

	c := newTestClient(t, mux)
	res, err := c.UploadKeyword(t.Context(), api.KeywordUpload{
		UserID:      "u-1",
		Keyword:     "hey",
		KeywordID:   "k-1",
		RepeatIndex: 3,
		Audio:       api.Audio{Data: []byte{1, 2, 3}, Filename: "k-1-3.mp3"},
	})
	require.NoError(t, err)
	assert.True(t, res.Accepted)
}

func TestUploadSentence_SpanFields(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /sentence/upload", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "0.250", r.FormValue("keyword_start"))
		assert.Equal(t, "1.750", r.FormValue("keyword_end"))
		writeJSON(w, api.SentenceUploadResult{Success: true})
	})

	c := newTestClient(t, mux)
	res, err := c.UploadSentence(t.Context(), api.SentenceUpload{
		UserID:       "u-1",
		SentenceID:   "s-1",
		KeywordStart: 0.25,
		KeywordEnd:   1.75,
		Audio:        api.Audio{Data: []byte{0}, Filename: "s-1.mp3"},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestPathAndQueryEscaping(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /sentence/assign/{userID}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "a b", r.PathValue("userID"))
		writeJSON(w, api.SentenceAssignment{Sentences: []api.Sentence{{ID: "s-1"}}})
	})
	mux.HandleFunc("GET /user/session/current-by-phone", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "+84901234567", r.URL.Query().Get("phone"))
		writeJSON(w, api.Session{ID: "sess-1", Step: api.StepSentence})
	})

	c := newTestClient(t, mux)

	sa, err := c.AssignSentences(t.Context(), "a b")
	require.NoError(t, err)
	assert.Len(t, sa.Sentences, 1)

	s, err := c.CurrentSessionByPhone(t.Context(), "+84901234567")
	require.NoError(t, err)
	assert.Equal(t, api.StepSentence, s.Step)
}

func TestStatusError(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("PUT /user/session/progress", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "session not found", http.StatusNotFound)
	})

	c := newTestClient(t, mux)
	err := c.UpdateProgress(t.Context(), api.SessionProgress{SessionID: "nope"})

	var se *api.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.Equal(t, "session not found", se.Body)
	assert.Contains(t, se.Error(), "PUT /user/session/progress")
}

func TestTransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := api.New(srv.URL)
	_, err := c.Keywords(t.Context())
	require.Error(t, err)

	var se *api.StatusError
	assert.False(t, errors.As(err, &se))
}
