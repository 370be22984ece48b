package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oncoline/chemochat-go/internal/engine"
	"github.com/oncoline/chemochat-go/internal/models"
	"github.com/oncoline/chemochat-go/internal/server"
	"github.com/oncoline/chemochat-go/internal/store"
)

type fakeAssembler struct{}

func (fakeAssembler) BuildPrompt(context.Context, []models.Message, string, []string) (string, string) {
	return "system", "user"
}

type fakeGenerator struct {
	output string
}

func (g *fakeGenerator) Stream(ctx context.Context, _, _ string, fn func(context.Context, []byte) error) error {
	return fn(ctx, []byte(g.output))
}

func testServer(t *testing.T, gen engine.Generator) (*httptest.Server, *store.Memory) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.NewMemory()
	eng := engine.New(st, fakeAssembler{}, gen, logger)
	ts := httptest.NewServer(server.New(eng, logger).Handler())
	t.Cleanup(ts.Close)
	return ts, st
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

type sessionResponse struct {
	Session struct {
		ID        uuid.UUID `json:"id"`
		PatientID uuid.UUID `json:"patient_id"`
		State     string    `json:"state"`
	} `json:"session"`
	Messages []struct {
		Sender         string         `json:"sender"`
		MessageType    string         `json:"message_type"`
		Content        string         `json:"content"`
		StructuredData map[string]any `json:"structured_data"`
	} `json:"messages"`
	IsNew bool `json:"is_new"`
}

func TestSessionTodayEndpoint(t *testing.T) {
	ts, _ := testServer(t, &fakeGenerator{})
	patientID := uuid.New()
	url := fmt.Sprintf("%s/chat/session/today?patient_id=%s&timezone=UTC", ts.URL, patientID)

	var first sessionResponse
	resp := getJSON(t, url, &first)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, first.IsNew)
	assert.Equal(t, "chemo_check_sent", first.Session.State)
	require.Len(t, first.Messages, 1)
	assert.Equal(t, "single-select", first.Messages[0].MessageType)
	assert.Equal(t, "Did you get chemotherapy today?", first.Messages[0].Content)

	var second sessionResponse
	getJSON(t, url, &second)
	assert.False(t, second.IsNew)
	assert.Equal(t, first.Session.ID, second.Session.ID)
}

func TestSessionTodayRejectsBadPatientID(t *testing.T) {
	ts, _ := testServer(t, &fakeGenerator{})
	resp := getJSON(t, ts.URL+"/chat/session/today?patient_id=not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSessionNewEndpoint(t *testing.T) {
	ts, _ := testServer(t, &fakeGenerator{})
	patientID := uuid.New()

	body, _ := json.Marshal(map[string]string{
		"patient_id": patientID.String(),
		"timezone":   "UTC",
	})
	resp, err := http.Post(ts.URL+"/chat/session/new", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var created sessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.True(t, created.IsNew)

	resp, err = http.Post(ts.URL+"/chat/session/new", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var again sessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&again))
	assert.NotEqual(t, created.Session.ID, again.Session.ID)
}

func TestSessionStateEndpoint(t *testing.T) {
	ts, _ := testServer(t, &fakeGenerator{})
	patientID := uuid.New()

	var created sessionResponse
	getJSON(t, fmt.Sprintf("%s/chat/session/today?patient_id=%s", ts.URL, patientID), &created)

	var state map[string]string
	resp := getJSON(t, fmt.Sprintf("%s/chat/%s/state", ts.URL, created.Session.ID), &state)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "chemo_check_sent", state["session_state"])

	resp = getJSON(t, fmt.Sprintf("%s/chat/%s/state", ts.URL, uuid.New()), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSessionDeleteEndpoint(t *testing.T) {
	ts, _ := testServer(t, &fakeGenerator{})
	patientID := uuid.New()

	var created sessionResponse
	getJSON(t, fmt.Sprintf("%s/chat/session/today?patient_id=%s", ts.URL, patientID), &created)

	// Another patient must not be able to delete the session.
	req, _ := http.NewRequest(http.MethodDelete,
		fmt.Sprintf("%s/chat/%s?patient_id=%s", ts.URL, created.Session.ID, uuid.New()), nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	req, _ = http.NewRequest(http.MethodDelete,
		fmt.Sprintf("%s/chat/%s?patient_id=%s", ts.URL, created.Session.ID, patientID), nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = getJSON(t, fmt.Sprintf("%s/chat/%s/state", ts.URL, created.Session.ID), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSessionFullEndpoint(t *testing.T) {
	ts, _ := testServer(t, &fakeGenerator{})
	patientID := uuid.New()

	var created sessionResponse
	getJSON(t, fmt.Sprintf("%s/chat/session/today?patient_id=%s", ts.URL, patientID), &created)

	var full sessionResponse
	resp := getJSON(t,
		fmt.Sprintf("%s/chat/%s/full?patient_id=%s", ts.URL, created.Session.ID, patientID), &full)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, full.Messages, 1)

	resp = getJSON(t,
		fmt.Sprintf("%s/chat/%s/full?patient_id=%s", ts.URL, created.Session.ID, uuid.New()), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

type wireFrame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	MsgID   *int64 `json:"msg_id"`
	Message *struct {
		Sender      string `json:"sender"`
		MessageType string `json:"message_type"`
		Content     string `json:"content"`
	} `json:"message"`
	SessionState string `json:"session_state"`
}

func TestWebsocketConversation(t *testing.T) {
	ts, _ := testServer(t, &fakeGenerator{})
	patientID := uuid.New()

	var created sessionResponse
	getJSON(t, fmt.Sprintf("%s/chat/session/today?patient_id=%s", ts.URL, patientID), &created)

	wsURL := strings.Replace(ts.URL, "http://", "ws://", 1) +
		"/chat/" + created.Session.ID.String() + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var ack wireFrame
	require.NoError(t, conn.ReadJSON(&ack))
	assert.Equal(t, "connection-ack", ack.Type)
	assert.Equal(t, "chemo_check_sent", ack.SessionState)

	require.NoError(t, conn.WriteJSON(map[string]string{
		"message_type": "button-response",
		"content":      "No",
	}))

	var saved wireFrame
	require.NoError(t, conn.ReadJSON(&saved))
	assert.Equal(t, "user-message-saved", saved.Type)
	require.NotNil(t, saved.Message)
	assert.Equal(t, "button-response", saved.Message.MessageType)

	var reply wireFrame
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "full-message", reply.Type)
	require.NotNil(t, reply.Message)
	assert.Equal(t, "assistant", reply.Message.Sender)
	assert.Contains(t, reply.Message.Content, "Thank you for checking in")
}

type stallingGenerator struct {
	started  chan struct{}
	unblocks chan error
}

func (g *stallingGenerator) Stream(ctx context.Context, _, _ string, _ func(context.Context, []byte) error) error {
	close(g.started)
	<-ctx.Done()
	g.unblocks <- ctx.Err()
	return ctx.Err()
}

func TestWebsocketDisconnectAbortsTurn(t *testing.T) {
	gen := &stallingGenerator{started: make(chan struct{}), unblocks: make(chan error, 1)}
	ts, st := testServer(t, gen)

	sess := &models.Session{
		ID:        uuid.New(),
		PatientID: uuid.New(),
		State:     models.StateFollowupQuestions,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, st.SaveSession(context.Background(), sess))

	wsURL := strings.Replace(ts.URL, "http://", "ws://", 1) +
		"/chat/" + sess.ID.String() + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	var ack wireFrame
	require.NoError(t, conn.ReadJSON(&ack))

	require.NoError(t, conn.WriteJSON(map[string]string{
		"message_type": "text",
		"content":      "I feel dizzy",
	}))
	<-gen.started
	require.NoError(t, conn.Close())

	// Dropping the connection must cancel the in-flight model call.
	select {
	case err := <-gen.unblocks:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("model call was not canceled after disconnect")
	}

	// The aborted turn commits nothing.
	msgs, err := st.ListMessages(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	got, err := st.GetSession(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateFollowupQuestions, got.State)
}

func TestWebsocketUnknownSession(t *testing.T) {
	ts, _ := testServer(t, &fakeGenerator{})
	wsURL := strings.Replace(ts.URL, "http://", "ws://", 1) + "/chat/" + uuid.New().String() + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	}
}
