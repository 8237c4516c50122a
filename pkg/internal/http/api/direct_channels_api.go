package api

import (
	"errors"

	"git.solsynth.dev/hypernet/chatcore/pkg/internal/http/exts"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/models"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/services"
	"github.com/gofiber/fiber/v2"
)

func createDirectChannel(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	user := exts.GetUser(c)

	var data struct {
		RelatedUser uint `json:"related_user" validate:"required"`
	}
	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	if _, err := services.GetProfile(c.UserContext(), data.RelatedUser); err != nil {
		return toHttpError(err)
	}

	channel, err := services.CreateChannel(c.UserContext(), user.ID, services.CreateChannelRequest{
		Kind:      models.ChannelKindDirect,
		MemberIDs: []uint{data.RelatedUser},
	})
	var seedErr *services.SeedError
	if errors.As(err, &seedErr) {
		return fiber.NewError(fiber.StatusInternalServerError, seedErr.Error())
	} else if err != nil {
		return toHttpError(err)
	}

	return c.JSON(channel)
}
