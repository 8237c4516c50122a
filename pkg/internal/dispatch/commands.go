package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"git.solsynth.dev/hypernet/chatcore/pkg/internal/database"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/metrics"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/models"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/services"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

const (
	KindCommand = "command"
	KindCard    = "card"
)

type CommandResult struct {
	Command        map[string]any `json:"command"`
	CardRenderSpec map[string]any `json:"cardRenderSpec"`
}

type SubmissionResult struct {
	Message          map[string]any `json:"message"`
	UpdatedCardState map[string]any `json:"updatedCardState"`
}

// ParseSlashCommand splits "/name args" into the command name and arguments.
func ParseSlashCommand(raw string) (name string, args string, err error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "/") || len(raw) < 2 {
		return "", "", ErrNotCommand
	}
	name, args, _ = strings.Cut(raw[1:], " ")
	if len(name) == 0 {
		return "", "", ErrNotCommand
	}
	return strings.ToLower(name), strings.TrimSpace(args), nil
}

// ListCommands returns the enabled entries of the command catalogue.
func ListCommands(ctx context.Context) ([]models.ChatCommand, error) {
	var commands []models.ChatCommand
	if err := database.C.WithContext(ctx).
		Where("is_enabled = ?", true).
		Order("name ASC").
		Find(&commands).Error; err != nil {
		return nil, err
	}
	return commands, nil
}

// DispatchSlashCommand hands the input to the command service. The outcome
// is recorded as a command execution either way.
func (v *Dispatcher) DispatchSlashCommand(ctx context.Context, credential string, userId, channelId uint, raw, locale string) (CommandResult, error) {
	var result CommandResult
	if userId == 0 {
		return result, services.ErrUnauthenticated
	}

	execution := models.ChatCommandExecution{
		AccountID: userId,
		ChannelID: lo.Ternary(channelId > 0, &channelId, nil),
		InputData: map[string]any{"input": raw},
	}

	err := func() error {
		name, _, err := ParseSlashCommand(raw)
		if err != nil {
			return err
		}

		var command models.ChatCommand
		if err := database.C.WithContext(ctx).Where("name = ?", name).First(&command).Error; err == nil {
			execution.CommandID = &command.ID
			if !command.IsEnabled {
				return fmt.Errorf("%w: /%s", ErrCommandDisable, name)
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("unable to get command: %w", err)
		}

		if !v.limiters.Allow(userId) {
			return ErrRateLimited
		}

		return v.call(ctx, v.cfg.CommandEndpoint, credential, map[string]any{
			"channelId": channelId,
			"input":     raw,
			"locale":    locale,
		}, &result)
	}()

	v.record(ctx, KindCommand, execution, result, err)
	return result, err
}

// SubmitCard forwards the form values of an interactive card.
func (v *Dispatcher) SubmitCard(ctx context.Context, credential string, userId uint, cardId string, formData map[string]any) (SubmissionResult, error) {
	var result SubmissionResult
	if userId == 0 {
		return result, services.ErrUnauthenticated
	}

	execution := models.ChatCommandExecution{
		AccountID: userId,
		InputData: map[string]any{"cardId": cardId, "formData": formData},
	}

	var err error
	if !v.limiters.Allow(userId) {
		err = ErrRateLimited
	} else {
		err = v.call(ctx, v.cfg.CardEndpoint, credential, map[string]any{
			"cardId":   cardId,
			"formData": formData,
		}, &result)
	}

	v.record(ctx, KindCard, execution, result, err)
	return result, err
}

func (v *Dispatcher) record(ctx context.Context, kind string, execution models.ChatCommandExecution, result any, err error) {
	if err != nil {
		execution.Status = models.ExecutionFailed
		execution.ResultData = map[string]any{"error": err.Error()}
	} else {
		execution.Status = models.ExecutionSuccess
		var data map[string]any
		models.FitStruct(result, &data)
		execution.ResultData = data
	}
	metrics.CommandExecutions.WithLabelValues(kind, execution.Status).Inc()

	// Record even when the caller already gave up
	if err := database.C.WithContext(context.WithoutCancel(ctx)).Create(&execution).Error; err != nil {
		log.Error().Err(err).Str("kind", kind).Msg("An error occurred when recording command execution...")
	}
}
