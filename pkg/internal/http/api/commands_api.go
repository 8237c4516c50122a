package api

import (
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/dispatch"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/http/exts"
	"github.com/gofiber/fiber/v2"
)

func listCommands(c *fiber.Ctx) error {
	commands, err := dispatch.ListCommands(c.UserContext())
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(commands)
}

func dispatchCommand(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	} else if dispatch.D == nil {
		return toHttpError(dispatch.ErrNotConfigured)
	}
	user := exts.GetUser(c)

	var data struct {
		Input     string `json:"input" validate:"required,startswith=/"`
		ChannelID uint   `json:"channel_id"`
		Locale    string `json:"locale"`
	}
	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	result, err := dispatch.D.DispatchSlashCommand(c.UserContext(), exts.GetCredential(c), user.ID, data.ChannelID, data.Input, data.Locale)
	if err != nil {
		return toHttpError(err)
	}
	return c.JSON(result)
}

func submitCard(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	} else if dispatch.D == nil {
		return toHttpError(dispatch.ErrNotConfigured)
	}
	user := exts.GetUser(c)

	var data struct {
		FormData map[string]any `json:"form_data"`
	}
	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	result, err := dispatch.D.SubmitCard(c.UserContext(), exts.GetCredential(c), user.ID, c.Params("cardId"), data.FormData)
	if err != nil {
		return toHttpError(err)
	}
	return c.JSON(result)
}

func detectIntent(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}

	var data struct {
		Text   string `json:"text" validate:"required"`
		Locale string `json:"locale"`
	}
	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	intent := dispatch.D.DetectIntent(c.UserContext(), exts.GetCredential(c), data.Text, data.Locale)
	return c.JSON(fiber.Map{
		"intent_detected": intent != nil,
		"intent":          intent,
	})
}
