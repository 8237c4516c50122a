package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"git.solsynth.dev/hypernet/chatcore/pkg/internal/models"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/services"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newService(t *testing.T, handler http.HandlerFunc) string {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv.URL
}

func latestExecution(t *testing.T, db *gorm.DB) models.ChatCommandExecution {
	t.Helper()
	var execution models.ChatCommandExecution
	require.NoError(t, db.Order("id DESC").First(&execution).Error)
	return execution
}

func TestParseSlashCommand(t *testing.T) {
	tests := []struct {
		raw  string
		name string
		args string
		err  error
	}{
		{raw: "/weather berlin today", name: "weather", args: "berlin today"},
		{raw: "  /Poll  ", name: "poll"},
		{raw: "hello", err: ErrNotCommand},
		{raw: "/", err: ErrNotCommand},
		{raw: "/ spaced", err: ErrNotCommand},
	}

	for _, tt := range tests {
		name, args, err := ParseSlashCommand(tt.raw)
		if tt.err != nil {
			assert.ErrorIs(t, err, tt.err, tt.raw)
			continue
		}
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.name, name)
		assert.Equal(t, tt.args, args)
	}
}

func TestDispatchSlashCommand(t *testing.T) {
	db := testutil.SetupDatabase(t)
	command := models.ChatCommand{Name: "weather", IsEnabled: true}
	require.NoError(t, db.Create(&command).Error)

	endpoint := newService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 3, body["channelId"])
		assert.Equal(t, "/weather berlin", body["input"])
		assert.Equal(t, "en-US", body["locale"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"command":{"name":"weather"},"cardRenderSpec":{"title":"Berlin"}}`))
	})

	dispatcher := New(Config{CommandEndpoint: endpoint})
	result, err := dispatcher.DispatchSlashCommand(context.Background(), "secret", 1, 3, "/weather berlin", "en-US")
	require.NoError(t, err)
	assert.Equal(t, "weather", result.Command["name"])
	assert.Equal(t, "Berlin", result.CardRenderSpec["title"])

	execution := latestExecution(t, db)
	assert.Equal(t, models.ExecutionSuccess, execution.Status)
	require.NotNil(t, execution.CommandID)
	assert.Equal(t, command.ID, *execution.CommandID)
	require.NotNil(t, execution.ChannelID)
	assert.EqualValues(t, 3, *execution.ChannelID)
	assert.Equal(t, "/weather berlin", execution.InputData["input"])
}

func TestDispatchSlashCommandServiceError(t *testing.T) {
	db := testutil.SetupDatabase(t)
	endpoint := newService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"unknown city"}`))
	})

	dispatcher := New(Config{CommandEndpoint: endpoint})
	_, err := dispatcher.DispatchSlashCommand(context.Background(), "secret", 1, 0, "/weather atlantis", "")

	var serviceErr *ServiceError
	require.ErrorAs(t, err, &serviceErr)
	assert.Equal(t, http.StatusBadRequest, serviceErr.Status)
	assert.Equal(t, "unknown city", serviceErr.Message)

	execution := latestExecution(t, db)
	assert.Equal(t, models.ExecutionFailed, execution.Status)
	assert.Nil(t, execution.CommandID)
	assert.Nil(t, execution.ChannelID)
	assert.Contains(t, execution.ResultData["error"], "unknown city")
}

func TestDispatchSlashCommandTransportError(t *testing.T) {
	db := testutil.SetupDatabase(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	dispatcher := New(Config{CommandEndpoint: endpoint, Timeout: time.Second})
	_, err := dispatcher.DispatchSlashCommand(context.Background(), "secret", 1, 0, "/ping", "")

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, models.ExecutionFailed, latestExecution(t, db).Status)
}

func TestDispatchRejects(t *testing.T) {
	db := testutil.SetupDatabase(t)
	require.NoError(t, db.Create(&models.ChatCommand{Name: "legacy", IsEnabled: false}).Error)
	var calls atomic.Int32
	endpoint := newService(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"command":{}}`))
	})
	dispatcher := New(Config{CommandEndpoint: endpoint, Rate: 0.001, Burst: 1})
	ctx := context.Background()

	_, err := dispatcher.DispatchSlashCommand(ctx, "", 0, 0, "/ping", "")
	assert.ErrorIs(t, err, services.ErrUnauthenticated)

	_, err = dispatcher.DispatchSlashCommand(ctx, "", 1, 0, "not a command", "")
	assert.ErrorIs(t, err, ErrNotCommand)

	_, err = dispatcher.DispatchSlashCommand(ctx, "", 1, 0, "/legacy", "")
	assert.ErrorIs(t, err, ErrCommandDisable)

	_, err = dispatcher.DispatchSlashCommand(ctx, "", 1, 0, "/ping", "")
	require.NoError(t, err)
	_, err = dispatcher.DispatchSlashCommand(ctx, "", 1, 0, "/ping", "")
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.EqualValues(t, 1, calls.Load())

	var failed int64
	require.NoError(t, db.Model(&models.ChatCommandExecution{}).Where("status = ?", models.ExecutionFailed).Count(&failed).Error)
	assert.EqualValues(t, 3, failed)
}

func TestSubmitCard(t *testing.T) {
	db := testutil.SetupDatabase(t)
	endpoint := newService(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			CardID   string         `json:"cardId"`
			FormData map[string]any `json:"formData"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "poll-1", body.CardID)
		assert.Equal(t, "yes", body.FormData["vote"])
		_, _ = w.Write([]byte(`{"message":{"content":"voted"},"updatedCardState":{"yes":1}}`))
	})

	dispatcher := New(Config{CardEndpoint: endpoint})
	result, err := dispatcher.SubmitCard(context.Background(), "secret", 1, "poll-1", map[string]any{"vote": "yes"})
	require.NoError(t, err)
	assert.Equal(t, "voted", result.Message["content"])
	assert.EqualValues(t, 1, result.UpdatedCardState["yes"])

	execution := latestExecution(t, db)
	assert.Equal(t, models.ExecutionSuccess, execution.Status)
	assert.Equal(t, "poll-1", execution.InputData["cardId"])
}

func TestDetectIntentNeverFails(t *testing.T) {
	respond := func(status int, payload string) *Dispatcher {
		endpoint := newService(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(payload))
		})
		return New(Config{IntentEndpoint: endpoint})
	}
	ctx := context.Background()

	intent := respond(http.StatusOK, `{"intentDetected":true,"intent":{"name":"schedule"}}`).
		DetectIntent(ctx, "", "meet tomorrow at 10", "en")
	require.NotNil(t, intent)
	assert.Equal(t, "schedule", intent["name"])

	assert.Nil(t, respond(http.StatusOK, `{"intentDetected":false}`).DetectIntent(ctx, "", "hello", "en"))
	assert.Nil(t, respond(http.StatusInternalServerError, `{"error":"model offline"}`).DetectIntent(ctx, "", "hello", "en"))
	assert.Nil(t, respond(http.StatusOK, `not json`).DetectIntent(ctx, "", "hello", "en"))

	assert.Nil(t, New(Config{IntentEndpoint: "http://127.0.0.1:1/intent", Timeout: time.Second}).DetectIntent(ctx, "", "hello", "en"))
	assert.Nil(t, New(Config{}).DetectIntent(ctx, "", "hello", "en"))

	var missing *Dispatcher
	assert.Nil(t, missing.DetectIntent(ctx, "", "hello", "en"))
}

func TestNotConfigured(t *testing.T) {
	testutil.SetupDatabase(t)
	_, err := New(Config{}).SubmitCard(context.Background(), "", 1, "card", nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
