package telegram_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"crewflow/internal/database"
	"crewflow/internal/telegram"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	Method string
	Body   map[string]any
}

func newTestServer(t *testing.T, calls *[]recordedCall, result string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasPrefix(r.URL.Path, "/bottest-token/"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		*calls = append(*calls, recordedCall{
			Method: strings.TrimPrefix(r.URL.Path, "/bottest-token/"),
			Body:   body,
		})

		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(`{"ok":true,"result":` + result + `}`)); err != nil {
			t.Errorf("error writing response: %v", err)
		}
	}))
}

func TestSendText(t *testing.T) {
	var calls []recordedCall
	server := newTestServer(t, &calls, `{}`)
	defer server.Close()

	client := telegram.NewClientWithHost(server.URL, "test-token")
	require.NoError(t, client.SendText(context.Background(), 42, "hello"))

	require.Len(t, calls, 1)
	assert.Equal(t, "sendMessage", calls[0].Method)
	assert.Equal(t, float64(42), calls[0].Body["chat_id"])
	assert.Equal(t, "hello", calls[0].Body["text"])
}

func TestSendMenu(t *testing.T) {
	var calls []recordedCall
	server := newTestServer(t, &calls, `{}`)
	defer server.Close()

	client := telegram.NewClientWithHost(server.URL, "test-token")
	keyboard := [][]telegram.Button{{{Text: "Approve", Data: "approve:1"}}}
	require.NoError(t, client.SendMenu(context.Background(), 42, "pick one", keyboard))

	require.Len(t, calls, 1)
	markup, ok := calls[0].Body["reply_markup"].(map[string]any)
	require.True(t, ok)
	rows, ok := markup["inline_keyboard"].([]any)
	require.True(t, ok)
	require.Len(t, rows, 1)
	button := rows[0].([]any)[0].(map[string]any)
	assert.Equal(t, "Approve", button["text"])
	assert.Equal(t, "approve:1", button["callback_data"])
}

func TestSendFileKindRouting(t *testing.T) {
	var calls []recordedCall
	server := newTestServer(t, &calls, `{}`)
	defer server.Close()

	client := telegram.NewClientWithHost(server.URL, "test-token")
	ctx := context.Background()

	require.NoError(t, client.SendFile(ctx, 42, "p1", database.FilePhoto))
	require.NoError(t, client.SendFile(ctx, 42, "v1", database.FileVideo))
	require.NoError(t, client.SendFile(ctx, 42, "d1", database.FileDocument))

	require.Len(t, calls, 3)
	assert.Equal(t, "sendPhoto", calls[0].Method)
	assert.Equal(t, "p1", calls[0].Body["photo"])
	assert.Equal(t, "sendVideo", calls[1].Method)
	assert.Equal(t, "v1", calls[1].Body["video"])
	assert.Equal(t, "sendDocument", calls[2].Method)
	assert.Equal(t, "d1", calls[2].Body["document"])
}

func TestSendFileGroup(t *testing.T) {
	var calls []recordedCall
	server := newTestServer(t, &calls, `{}`)
	defer server.Close()

	client := telegram.NewClientWithHost(server.URL, "test-token")
	items := []telegram.FileItem{
		{FileId: "p1", Kind: database.FilePhoto},
		{FileId: "v1", Kind: database.FileVideo},
		{FileId: "d1", Kind: database.FileDocument},
	}
	require.NoError(t, client.SendFileGroup(context.Background(), 42, items, "submissions for editing"))

	require.Len(t, calls, 2)
	assert.Equal(t, "sendMediaGroup", calls[0].Method)
	media := calls[0].Body["media"].([]any)
	require.Len(t, media, 2)
	first := media[0].(map[string]any)
	assert.Equal(t, "p1", first["media"])
	assert.Equal(t, "submissions for editing", first["caption"])
	second := media[1].(map[string]any)
	_, hasCaption := second["caption"]
	assert.False(t, hasCaption)

	assert.Equal(t, "sendDocument", calls[1].Method)
	assert.Equal(t, "d1", calls[1].Body["document"])
}

func TestSendFileGroupSingleItem(t *testing.T) {
	var calls []recordedCall
	server := newTestServer(t, &calls, `{}`)
	defer server.Close()

	client := telegram.NewClientWithHost(server.URL, "test-token")
	items := []telegram.FileItem{{FileId: "v1", Kind: database.FileVideo}}
	require.NoError(t, client.SendFileGroup(context.Background(), 42, items, "Trailer A — editing, 1 file(s)"))

	require.Len(t, calls, 1)
	assert.Equal(t, "sendVideo", calls[0].Method)
	assert.Equal(t, "v1", calls[0].Body["video"])
	assert.Equal(t, "Trailer A — editing, 1 file(s)", calls[0].Body["caption"])
}

func TestSendFileGroupSinglePhotoKeepsCaption(t *testing.T) {
	var calls []recordedCall
	server := newTestServer(t, &calls, `{}`)
	defer server.Close()

	client := telegram.NewClientWithHost(server.URL, "test-token")
	items := []telegram.FileItem{{FileId: "p1", Kind: database.FilePhoto}}
	require.NoError(t, client.SendFileGroup(context.Background(), 42, items, "preview draft"))

	require.Len(t, calls, 1)
	assert.Equal(t, "sendPhoto", calls[0].Method)
	assert.Equal(t, "preview draft", calls[0].Body["caption"])
}

func TestSendFileGroupDocumentsOnly(t *testing.T) {
	var calls []recordedCall
	server := newTestServer(t, &calls, `{}`)
	defer server.Close()

	client := telegram.NewClientWithHost(server.URL, "test-token")
	items := []telegram.FileItem{{FileId: "d1", Kind: database.FileDocument}}
	require.NoError(t, client.SendFileGroup(context.Background(), 42, items, "script draft"))

	require.Len(t, calls, 2)
	assert.Equal(t, "sendMessage", calls[0].Method)
	assert.Equal(t, "script draft", calls[0].Body["text"])
	assert.Equal(t, "sendDocument", calls[1].Method)
	assert.Equal(t, "d1", calls[1].Body["document"])
}

func TestUpdates(t *testing.T) {
	var calls []recordedCall
	result := `[{"update_id":7,"message":{"message_id":1,"from":{"id":42},"chat":{"id":42},"text":"/start"}}]`
	server := newTestServer(t, &calls, result)
	defer server.Close()

	client := telegram.NewClientWithHost(server.URL, "test-token")
	updates, err := client.Updates(context.Background(), 5, 30)
	require.NoError(t, err)

	require.Len(t, calls, 1)
	assert.Equal(t, "getUpdates", calls[0].Method)
	assert.Equal(t, float64(5), calls[0].Body["offset"])

	require.Len(t, updates, 1)
	assert.Equal(t, int64(7), updates[0].UpdateId)
	assert.Equal(t, "/start", updates[0].Message.Text)
	assert.Equal(t, int64(42), updates[0].Message.From.Id)
}

func TestAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		if _, err := w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)); err != nil {
			t.Errorf("error writing response: %v", err)
		}
	}))
	defer server.Close()

	client := telegram.NewClientWithHost(server.URL, "test-token")
	err := client.SendText(context.Background(), 42, "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}
