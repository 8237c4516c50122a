package services

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"git.solsynth.dev/hypernet/chatcore/pkg/internal/database"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/models"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type FileUpload struct {
	Name     string
	MimeType string
	Size     int64
	Body     io.Reader
}

func removeObjects(ctx context.Context, refs []string) {
	if storage.S == nil {
		return
	}
	for _, ref := range refs {
		if err := storage.S.Remove(ctx, ref); err != nil {
			log.Warn().Err(err).Str("ref", ref).Msg("An error occurred when removing stored object...")
		}
	}
}

// compensate undoes the earlier steps of a failed upload pipeline.
func compensate(ctx context.Context, ref string, messageId uint) bool {
	ok := true
	if messageId > 0 {
		if err := database.C.WithContext(ctx).Unscoped().Delete(&models.Message{}, messageId).Error; err != nil {
			log.Error().Err(err).Uint("message", messageId).Msg("An error occurred when rolling back message...")
			ok = false
		}
	}
	if len(ref) > 0 && storage.S != nil {
		if err := storage.S.Remove(ctx, ref); err != nil {
			log.Error().Err(err).Str("ref", ref).Msg("An error occurred when removing orphaned upload...")
			ok = false
		}
	}
	return ok
}

func uploadKey(userId uint, kind, name string) string {
	return fmt.Sprintf("%d/%s/%s/%s", userId, kind, uuid.NewString(), path.Base(name))
}

// SendWithAttachment uploads the file, then writes the message and the
// attachment row. Every stage reports its own failure as *PipelineError and
// the completed stages are rolled back.
func SendWithAttachment(ctx context.Context, senderId, channelId uint, content string, file FileUpload) (models.Message, error) {
	if storage.S == nil {
		return models.Message{}, ErrNoStorage
	}
	if _, err := EnsureMembership(ctx, channelId, senderId); err != nil {
		return models.Message{}, err
	}

	ref, err := storage.S.Put(ctx, uploadKey(senderId, "attachments", file.Name), file.MimeType, file.Body, file.Size)
	if err != nil {
		return models.Message{}, &PipelineError{Stage: StageUpload, Err: err}
	}

	message, err := newMessage(ctx, senderId, SendRequest{
		ChannelID: channelId,
		Content:   content,
		Type:      models.MessageTypeFile,
		Metadata:  map[string]any{"file_name": file.Name},
	})
	if err != nil {
		return message, &PipelineError{Stage: StageMessage, Ref: ref, Compensated: compensate(ctx, ref, 0), Err: err}
	}

	attachment := models.MessageAttachment{
		MessageID:  message.ID,
		FileName:   file.Name,
		MimeType:   file.MimeType,
		ByteSize:   file.Size,
		StorageRef: ref,
		UploadedAt: time.Now(),
	}
	if err := database.C.WithContext(ctx).Create(&attachment).Error; err != nil {
		return message, &PipelineError{
			Stage:       StageAttachment,
			Ref:         ref,
			MessageID:   message.ID,
			Compensated: compensate(ctx, ref, message.ID),
			Err:         err,
		}
	}
	message.Attachments = []models.MessageAttachment{attachment}

	afterMessageCreated(ctx, message)
	return message, nil
}

// SendVoice stores a recorded clip and its duration the same way.
func SendVoice(ctx context.Context, senderId, channelId uint, audio FileUpload, duration float64) (models.Message, error) {
	if storage.S == nil {
		return models.Message{}, ErrNoStorage
	}
	if duration <= 0 {
		return models.Message{}, fmt.Errorf("%w: voice clip duration must be positive", ErrInvalid)
	}
	if _, err := EnsureMembership(ctx, channelId, senderId); err != nil {
		return models.Message{}, err
	}

	name := audio.Name
	if len(name) == 0 {
		name = "voice.webm"
	}
	ref, err := storage.S.Put(ctx, uploadKey(senderId, "voice", name), audio.MimeType, audio.Body, audio.Size)
	if err != nil {
		return models.Message{}, &PipelineError{Stage: StageUpload, Err: err}
	}

	message, err := newMessage(ctx, senderId, SendRequest{
		ChannelID: channelId,
		Type:      models.MessageTypeVoice,
		Metadata:  map[string]any{"duration": duration},
	})
	if err != nil {
		return message, &PipelineError{Stage: StageMessage, Ref: ref, Compensated: compensate(ctx, ref, 0), Err: err}
	}

	voice := models.VoiceMessage{
		MessageID:       message.ID,
		DurationSeconds: duration,
		StorageRef:      ref,
	}
	if err := database.C.WithContext(ctx).Create(&voice).Error; err != nil {
		return message, &PipelineError{
			Stage:       StageVoice,
			Ref:         ref,
			MessageID:   message.ID,
			Compensated: compensate(ctx, ref, message.ID),
			Err:         err,
		}
	}
	message.Voice = &voice

	afterMessageCreated(ctx, message)
	return message, nil
}
