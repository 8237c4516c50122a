package api

import (
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/http/exts"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

func MapAPIs(app *fiber.App, baseURL string) {
	api := app.Group(baseURL).Use(exts.AuthMiddleware).Name("API")
	{
		quick := api.Group("/quick")
		{
			quick.Post("/:channelId/reply/:messageId", quickReply)
		}

		api.Get("/unified", upgradeGateway, websocket.New(chatGateway))

		channels := api.Group("/channels").Name("Channels API")
		{
			channels.Get("/", listChannel)
			channels.Get("/:channelId", getChannel)
			channels.Post("/", createChannel)
			channels.Post("/dm", createDirectChannel)
			channels.Put("/:channelId", editChannel)
			channels.Delete("/:channelId", deleteChannel)

			channels.Get("/:channelId/members", listChannelMembers)
			channels.Get("/:channelId/members/me", getChannelIdentity)
			channels.Post("/:channelId/members/me", joinChannel)
			channels.Put("/:channelId/members/me/notify", editChannelNotifyLevel)
			channels.Delete("/:channelId/members/me", leaveChannel)

			channels.Get("/:channelId/messages", listMessage)
			channels.Post("/:channelId/messages", newMessage)
			channels.Post("/:channelId/messages/attachment", newAttachmentMessage)
			channels.Post("/:channelId/messages/voice", newVoiceMessage)
			channels.Put("/:channelId/messages/:messageId", editMessage)
			channels.Delete("/:channelId/messages/:messageId", deleteMessage)
			channels.Get("/:channelId/messages/:messageId/thread", listThread)
			channels.Post("/:channelId/messages/:messageId/thread", replyMessage)
			channels.Post("/:channelId/messages/:messageId/reactions", toggleReaction)
			channels.Post("/:channelId/messages/:messageId/read", markRead)
		}

		commands := api.Group("/commands").Name("Commands API")
		{
			commands.Get("/", listCommands)
			commands.Post("/dispatch", dispatchCommand)
			commands.Post("/cards/:cardId", submitCard)
			commands.Post("/intent", detectIntent)
		}

		api.Get("/whats-new", getWhatsNew)
	}
}
