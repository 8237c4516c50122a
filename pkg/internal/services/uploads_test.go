package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"git.solsynth.dev/hypernet/chatcore/pkg/internal/models"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	removed []string
	putErr  error
}

func (v *memoryStore) Put(_ context.Context, key, _ string, body io.Reader, _ int64) (string, error) {
	if v.putErr != nil {
		return "", v.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.objects[key] = data
	return key, nil
}

func (v *memoryStore) Remove(_ context.Context, ref string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.objects, ref)
	v.removed = append(v.removed, ref)
	return nil
}

func (v *memoryStore) URL(_ context.Context, ref string) (string, error) {
	return fmt.Sprintf("memory://%s", ref), nil
}

func setupStore(t *testing.T) *memoryStore {
	t.Helper()
	store := &memoryStore{objects: make(map[string][]byte)}
	prev := storage.S
	storage.S = store
	t.Cleanup(func() { storage.S = prev })
	return store
}

func upload(name, body string) FileUpload {
	return FileUpload{
		Name:     name,
		MimeType: "text/plain",
		Size:     int64(len(body)),
		Body:     strings.NewReader(body),
	}
}

func TestSendWithAttachment(t *testing.T) {
	db, channel := setupChannel(t, 2)
	store := setupStore(t)
	ctx := context.Background()

	message, err := SendWithAttachment(ctx, 2, channel.ID, "see file", upload("../notes.txt", "hello"))
	require.NoError(t, err)
	assert.Equal(t, models.MessageTypeFile, message.Type)
	require.Len(t, message.Attachments, 1)

	ref := message.Attachments[0].StorageRef
	assert.True(t, strings.HasPrefix(ref, "2/attachments/"))
	assert.True(t, strings.HasSuffix(ref, "/notes.txt"))
	assert.Equal(t, []byte("hello"), store.objects[ref])

	var count int64
	require.NoError(t, db.Model(&models.MessageAttachment{}).Where("message_id = ?", message.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestSendWithAttachmentUploadFailure(t *testing.T) {
	db, channel := setupChannel(t)
	store := setupStore(t)
	store.putErr = errors.New("bucket unavailable")

	_, err := SendWithAttachment(context.Background(), 1, channel.ID, "", upload("a.txt", "x"))

	var pipelineErr *PipelineError
	require.ErrorAs(t, err, &pipelineErr)
	assert.Equal(t, StageUpload, pipelineErr.Stage)
	assert.Empty(t, pipelineErr.Ref)

	var count int64
	require.NoError(t, db.Model(&models.Message{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSendWithAttachmentCompensatesLateFailure(t *testing.T) {
	db, channel := setupChannel(t)
	store := setupStore(t)
	require.NoError(t, db.Migrator().DropTable(&models.MessageAttachment{}))

	_, err := SendWithAttachment(context.Background(), 1, channel.ID, "", upload("a.txt", "x"))

	var pipelineErr *PipelineError
	require.ErrorAs(t, err, &pipelineErr)
	assert.Equal(t, StageAttachment, pipelineErr.Stage)
	assert.NotZero(t, pipelineErr.MessageID)
	assert.True(t, pipelineErr.Compensated)
	assert.Contains(t, store.removed, pipelineErr.Ref)
	assert.Empty(t, store.objects)

	var count int64
	require.NoError(t, db.Unscoped().Model(&models.Message{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSendVoice(t *testing.T) {
	_, channel := setupChannel(t)
	setupStore(t)
	ctx := context.Background()

	_, err := SendVoice(ctx, 1, channel.ID, upload("clip.webm", "ogg"), 0)
	assert.ErrorIs(t, err, ErrInvalid)

	message, err := SendVoice(ctx, 1, channel.ID, upload("clip.webm", "ogg"), 3.5)
	require.NoError(t, err)
	assert.Equal(t, models.MessageTypeVoice, message.Type)
	require.NotNil(t, message.Voice)
	assert.Equal(t, 3.5, message.Voice.DurationSeconds)

	view, err := GetMessageView(ctx, message.ID)
	require.NoError(t, err)
	require.NotNil(t, view.Voice)
	assert.Equal(t, message.Voice.StorageRef, view.Voice.StorageRef)
}

func TestSendWithoutStorage(t *testing.T) {
	_, channel := setupChannel(t)
	prev := storage.S
	storage.S = nil
	defer func() { storage.S = prev }()

	_, err := SendWithAttachment(context.Background(), 1, channel.ID, "", upload("a.txt", "x"))
	assert.ErrorIs(t, err, ErrNoStorage)
}
