package api

import (
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/http/exts"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/models"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/services"
	"github.com/gofiber/fiber/v2"
)

func listChannelMembers(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	user := exts.GetUser(c)
	channelId, _ := c.ParamsInt("channelId", 0)
	take := c.QueryInt("take", 0)
	offset := c.QueryInt("offset", 0)

	channel, err := services.GetChannel(c.UserContext(), uint(channelId))
	if err != nil {
		return toHttpError(err)
	}
	if ok, err := services.CanReadChannel(c.UserContext(), channel, user.ID); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	} else if !ok {
		return fiber.NewError(fiber.StatusForbidden, "you need join the channel before you list the members")
	}

	count, err := services.CountChannelMember(c.UserContext(), channel.ID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	if members, err := services.ListChannelMember(c.UserContext(), channel.ID, take, offset); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	} else {
		return c.JSON(fiber.Map{
			"count": count,
			"data":  members,
		})
	}
}

func getChannelIdentity(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	user := exts.GetUser(c)
	channelId, _ := c.ParamsInt("channelId", 0)

	if member, err := services.GetChannelMember(c.UserContext(), uint(channelId), user.ID); err != nil {
		return toHttpError(err)
	} else {
		return c.JSON(member)
	}
}

func joinChannel(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	user := exts.GetUser(c)
	channelId, _ := c.ParamsInt("channelId", 0)

	joined, err := services.EnsureMembership(c.UserContext(), uint(channelId), user.ID)
	if err != nil {
		return toHttpError(err)
	}
	return c.JSON(fiber.Map{"joined": joined})
}

func editChannelNotifyLevel(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	user := exts.GetUser(c)
	channelId, _ := c.ParamsInt("channelId", 0)

	var data struct {
		NotifyLevel int8 `json:"notify_level" validate:"min=0,max=2"`
	}
	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	member, err := services.GetChannelMember(c.UserContext(), uint(channelId), user.ID)
	if err != nil {
		return toHttpError(err)
	}

	if member, err = services.EditChannelMemberNotify(c.UserContext(), member, models.NotifyLevel(data.NotifyLevel)); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(member)
}

func leaveChannel(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	user := exts.GetUser(c)
	channelId, _ := c.ParamsInt("channelId", 0)

	if err := services.LeaveChannel(c.UserContext(), uint(channelId), user.ID); err != nil {
		return toHttpError(err)
	}
	return c.SendStatus(fiber.StatusOK)
}
