package api

import (
	"errors"
	"mime/multipart"
	"strconv"
	"time"

	"git.solsynth.dev/hypernet/chatcore/pkg/internal/http/exts"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/models"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/services"
	"github.com/gofiber/fiber/v2"
)

func listMessage(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	user := exts.GetUser(c)
	channelId, _ := c.ParamsInt("channelId", 0)
	take := c.QueryInt("take", services.DefaultPageSize)

	channel, err := services.GetChannel(c.UserContext(), uint(channelId))
	if err != nil {
		return toHttpError(err)
	}
	if ok, err := services.CanReadChannel(c.UserContext(), channel, user.ID); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	} else if !ok {
		return fiber.NewError(fiber.StatusForbidden, "you need join the channel before you read the messages")
	}

	messages, err := services.LoadMessages(c.UserContext(), channel.ID, take)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(messages)
}

func newMessage(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	user := exts.GetUser(c)
	channelId, _ := c.ParamsInt("channelId", 0)

	var data struct {
		Content  string         `json:"content" validate:"required,max=4096"`
		Metadata map[string]any `json:"metadata"`
	}
	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	message, err := services.SendMessage(c.UserContext(), user.ID, services.SendRequest{
		ChannelID: uint(channelId),
		Content:   data.Content,
		Type:      models.MessageTypeText,
		Metadata:  data.Metadata,
	})
	if err != nil {
		return toHttpError(err)
	}
	return c.JSON(message)
}

func readUpload(c *fiber.Ctx, field string) (services.FileUpload, func(), error) {
	header, err := c.FormFile(field)
	if err != nil {
		return services.FileUpload{}, nil, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	var file multipart.File
	if file, err = header.Open(); err != nil {
		return services.FileUpload{}, nil, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	return services.FileUpload{
		Name:     header.Filename,
		MimeType: header.Header.Get(fiber.HeaderContentType),
		Size:     header.Size,
		Body:     file,
	}, func() { _ = file.Close() }, nil
}

// pipelineFailure reports which stage of an upload broke.
func pipelineFailure(c *fiber.Ctx, err error) error {
	var pipelineErr *services.PipelineError
	if errors.As(err, &pipelineErr) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"stage":       pipelineErr.Stage,
			"compensated": pipelineErr.Compensated,
			"error":       pipelineErr.Error(),
		})
	}
	return toHttpError(err)
}

func newAttachmentMessage(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	user := exts.GetUser(c)
	channelId, _ := c.ParamsInt("channelId", 0)

	file, release, err := readUpload(c, "file")
	if err != nil {
		return err
	}
	defer release()

	message, err := services.SendWithAttachment(c.UserContext(), user.ID, uint(channelId), c.FormValue("content"), file)
	if err != nil {
		return pipelineFailure(c, err)
	}
	return c.JSON(message)
}

func newVoiceMessage(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	user := exts.GetUser(c)
	channelId, _ := c.ParamsInt("channelId", 0)

	duration, err := strconv.ParseFloat(c.FormValue("duration"), 64)
	if err != nil || duration <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "voice clip duration is required")
	}

	audio, release, err := readUpload(c, "audio")
	if err != nil {
		return err
	}
	defer release()

	message, err := services.SendVoice(c.UserContext(), user.ID, uint(channelId), audio, duration)
	if err != nil {
		return pipelineFailure(c, err)
	}
	return c.JSON(message)
}

func editMessage(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	user := exts.GetUser(c)
	messageId, _ := c.ParamsInt("messageId", 0)

	var data struct {
		Content string `json:"content" validate:"required,max=4096"`
	}
	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	message, err := services.EditMessage(c.UserContext(), user.ID, uint(messageId), data.Content)
	if err != nil {
		return toHttpError(err)
	}
	return c.JSON(message)
}

func deleteMessage(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	user := exts.GetUser(c)
	messageId, _ := c.ParamsInt("messageId", 0)

	message, err := services.DeleteMessage(c.UserContext(), user.ID, uint(messageId))
	if err != nil {
		return toHttpError(err)
	}
	return c.JSON(message)
}

func listThread(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	user := exts.GetUser(c)
	messageId, _ := c.ParamsInt("messageId", 0)

	parent, err := services.GetMessage(c.UserContext(), uint(messageId))
	if err != nil {
		return toHttpError(err)
	}
	channel, err := services.GetChannel(c.UserContext(), parent.ChannelID)
	if err != nil {
		return toHttpError(err)
	}
	if ok, err := services.CanReadChannel(c.UserContext(), channel, user.ID); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	} else if !ok {
		return fiber.NewError(fiber.StatusForbidden, "you need join the channel before you read the messages")
	}

	replies, err := services.LoadThread(c.UserContext(), parent.ID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(replies)
}

func replyMessage(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	user := exts.GetUser(c)
	messageId, _ := c.ParamsInt("messageId", 0)

	var data struct {
		Content string `json:"content" validate:"required,max=4096"`
	}
	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	message, err := services.ReplyMessage(c.UserContext(), user.ID, uint(messageId), data.Content)
	if err != nil {
		return toHttpError(err)
	}
	return c.JSON(message)
}

func toggleReaction(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	user := exts.GetUser(c)
	messageId, _ := c.ParamsInt("messageId", 0)

	var data struct {
		Symbol string `json:"symbol" validate:"required,max=32"`
	}
	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	reacted, err := services.ToggleReaction(c.UserContext(), user.ID, uint(messageId), data.Symbol)
	if err != nil {
		return toHttpError(err)
	}
	return c.JSON(fiber.Map{"reacted": reacted})
}

func markRead(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	user := exts.GetUser(c)
	channelId, _ := c.ParamsInt("channelId", 0)

	services.MarkRead(uint(channelId), user.ID, time.Now())
	return c.SendStatus(fiber.StatusOK)
}
