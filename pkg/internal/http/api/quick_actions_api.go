package api

import (
	"fmt"

	"git.solsynth.dev/hypernet/chatcore/pkg/internal/http/exts"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/services"
	"github.com/gofiber/fiber/v2"
)

// quickReply is a simplified API for replying to a message
// It used in the notification actions, no session is required
func quickReply(c *fiber.Ctx) error {
	replyTk := c.Query("replyToken")
	if len(replyTk) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "reply token is required")
	}

	claims, err := services.ParseReplyToken(replyTk)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("reply token is invaild: %v", err))
	}

	channelId, _ := c.ParamsInt("channelId", 0)
	messageId, _ := c.ParamsInt("messageId", 0)

	if claims.MessageID != uint(messageId) {
		return fiber.NewError(fiber.StatusBadRequest, "reply token is invaild, message id mismatch")
	}

	var data struct {
		Content string `json:"content" validate:"required,max=4096"`
	}
	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	parent, err := services.GetMessage(c.UserContext(), uint(messageId))
	if err != nil {
		return toHttpError(err)
	} else if parent.ChannelID != uint(channelId) {
		return fiber.NewError(fiber.StatusBadRequest, "message does not belong to this channel")
	}

	message, err := services.ReplyMessage(c.UserContext(), claims.UserID, parent.ID, data.Content)
	if err != nil {
		return toHttpError(err)
	}

	return c.JSON(message)
}
