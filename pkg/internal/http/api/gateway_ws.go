package api

import (
	"context"
	"errors"
	"sync"

	"git.solsynth.dev/hypernet/chatcore/pkg/internal/http/exts"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/models"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/services"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/session"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
)

// Packet is both the command a client sends and what the server pushes.
type Packet struct {
	Action  string              `json:"action"`
	Message string              `json:"message,omitempty"`
	Payload jsoniter.RawMessage `json:"payload,omitempty"`
}

func (v Packet) Marshal() []byte {
	data, _ := jsoniter.Marshal(v)
	return data
}

func newPacket(action string, payload any) Packet {
	raw, _ := jsoniter.Marshal(payload)
	return Packet{Action: action, Payload: raw}
}

func upgradeGateway(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return exts.EnsureAuthenticated(c)
}

func chatGateway(c *websocket.Conn) {
	user := c.Locals("user").(models.Profile)
	credential, _ := c.Locals("credential").(string)

	sess, err := session.NewSession(user.ID, credential, c.Query("locale"), session.Deps{})
	if err != nil {
		_ = c.WriteMessage(websocket.TextMessage, Packet{Action: "error", Message: err.Error()}.Marshal())
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var writeLock sync.Mutex
	write := func(packet Packet) error {
		writeLock.Lock()
		defer writeLock.Unlock()
		return c.WriteMessage(websocket.TextMessage, packet.Marshal())
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for event := range sess.Events() {
			if err := write(newPacket(event.Kind, event)); err != nil {
				log.Debug().Err(err).Uint("user", user.ID).Msg("Unable to push event to client...")
			}
		}
	}()

	for {
		_, raw, err := c.ReadMessage()
		if err != nil {
			break
		}

		var packet Packet
		if err := jsoniter.Unmarshal(raw, &packet); err != nil {
			_ = write(Packet{Action: "error", Message: "unable to unmarshal your command, requires json request"})
			continue
		}

		if resp := dealCommand(ctx, sess, packet); resp != nil {
			if err := write(*resp); err != nil {
				break
			}
		}
	}

	cancel()
	sess.Close()
	wg.Wait()
}

// dealCommand runs one client command against the session. Failed writes
// already produce a notice event, the reply only echoes the error text.
func dealCommand(ctx context.Context, sess *session.Session, packet Packet) *Packet {
	var data struct {
		ChannelID uint           `json:"channel_id"`
		MessageID uint           `json:"message_id"`
		Content   string         `json:"content"`
		Metadata  map[string]any `json:"metadata"`
		Symbol    string         `json:"symbol"`
		Input     string         `json:"input"`
		CardID    string         `json:"card_id"`
		FormData  map[string]any `json:"form_data"`
		Name      string         `json:"name"`
		Kind      string         `json:"kind"`
		IsPrivate bool           `json:"is_private"`
		Members   []uint         `json:"members"`
	}
	if len(packet.Payload) > 0 {
		if err := jsoniter.Unmarshal(packet.Payload, &data); err != nil {
			return &Packet{Action: "error", Message: err.Error()}
		}
	}

	reply := func(payload any, err error) *Packet {
		if err != nil {
			return &Packet{Action: packet.Action, Message: err.Error()}
		}
		resp := newPacket(packet.Action, payload)
		return &resp
	}

	switch packet.Action {
	case "channels.list":
		return reply(sess.ListChannels(ctx))
	case "channels.select":
		return reply(sess.SelectChannel(ctx, data.ChannelID))
	case "channels.create":
		channel, err := sess.CreateChannel(ctx, services.CreateChannelRequest{
			Name:      data.Name,
			Kind:      data.Kind,
			Private:   data.IsPrivate,
			MemberIDs: data.Members,
		})
		// The channel exists even when seeding some members failed
		var seedErr *services.SeedError
		if errors.As(err, &seedErr) {
			resp := newPacket(packet.Action, fiber.Map{
				"channel": channel,
				"failed":  seedErr.Failed,
			})
			resp.Message = seedErr.Error()
			return &resp
		}
		return reply(channel, err)
	case "messages.list":
		return reply(sess.Messages(), nil)
	case "messages.send":
		return reply(sess.Send(ctx, data.Content, data.Metadata))
	case "messages.reply":
		return reply(sess.Reply(ctx, data.MessageID, data.Content))
	case "messages.thread":
		return reply(sess.LoadThread(ctx, data.MessageID))
	case "messages.edit":
		return reply(sess.Edit(ctx, data.MessageID, data.Content))
	case "messages.delete":
		return reply(nil, sess.Delete(ctx, data.MessageID))
	case "messages.react":
		reacted, err := sess.React(ctx, data.MessageID, data.Symbol)
		return reply(map[string]bool{"reacted": reacted}, err)
	case "status.typing":
		sess.Typing()
		return nil
	case "commands.dispatch":
		return reply(sess.Dispatch(ctx, data.Input))
	case "cards.submit":
		return reply(sess.SubmitCard(ctx, data.CardID, data.FormData))
	case "intent.detect":
		return reply(sess.DetectIntent(ctx, data.Content), nil)
	default:
		return &Packet{Action: "error", Message: "command not found"}
	}
}
