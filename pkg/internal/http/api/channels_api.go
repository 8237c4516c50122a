package api

import (
	"errors"

	"git.solsynth.dev/hypernet/chatcore/pkg/internal/http/exts"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/models"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/services"
	"github.com/gofiber/fiber/v2"
)

func listChannel(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	user := exts.GetUser(c)

	channels, err := services.ListChannel(c.UserContext(), user.ID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(channels)
}

func getChannel(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	user := exts.GetUser(c)
	channelId, _ := c.ParamsInt("channelId", 0)

	channel, err := services.SelectChannel(c.UserContext(), uint(channelId), user.ID)
	if err != nil {
		return toHttpError(err)
	}
	return c.JSON(channel)
}

func createChannel(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	user := exts.GetUser(c)

	var data struct {
		Name        string `json:"name" validate:"required,max=64"`
		Description string `json:"description" validate:"max=4096"`
		Kind        string `json:"kind" validate:"required,oneof=group public private"`
		IsPrivate   bool   `json:"is_private"`
		Members     []uint `json:"members"`
	}
	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	channel, err := services.CreateChannel(c.UserContext(), user.ID, services.CreateChannelRequest{
		Name:        data.Name,
		Description: data.Description,
		Kind:        data.Kind,
		Private:     data.IsPrivate,
		MemberIDs:   data.Members,
	})
	var seedErr *services.SeedError
	if errors.As(err, &seedErr) {
		return c.Status(fiber.StatusMultiStatus).JSON(fiber.Map{
			"channel": channel,
			"failed":  seedErr.Failed,
			"error":   seedErr.Error(),
		})
	} else if err != nil {
		return toHttpError(err)
	}

	return c.JSON(channel)
}

func editChannel(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	user := exts.GetUser(c)
	channelId, _ := c.ParamsInt("channelId", 0)

	var data struct {
		Name        string `json:"name" validate:"required,max=64"`
		Description string `json:"description" validate:"max=4096"`
	}
	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	channel, err := ownedChannel(c, uint(channelId), user.ID)
	if err != nil {
		return err
	}

	if channel, err = services.EditChannel(c.UserContext(), channel, data.Name, data.Description); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(channel)
}

func deleteChannel(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	user := exts.GetUser(c)
	channelId, _ := c.ParamsInt("channelId", 0)

	channel, err := ownedChannel(c, uint(channelId), user.ID)
	if err != nil {
		return err
	}

	if err := services.DeleteChannel(c.UserContext(), channel); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.SendStatus(fiber.StatusOK)
}

// ownedChannel loads a channel the user is the owner of.
func ownedChannel(c *fiber.Ctx, channelId, userId uint) (models.Channel, error) {
	channel, err := services.GetChannel(c.UserContext(), channelId)
	if err != nil {
		return channel, toHttpError(err)
	}
	member, err := services.GetChannelMember(c.UserContext(), channelId, userId)
	if err != nil || member.Role != models.MemberRoleOwner {
		return channel, fiber.NewError(fiber.StatusForbidden, "you must be the owner of this channel")
	}
	return channel, nil
}
