package dispatch

import (
	"context"

	"github.com/rs/zerolog/log"
)

// DetectIntent asks the intent service about free text. Any failure is
// treated as no intent, nil is returned and nothing is raised.
func (v *Dispatcher) DetectIntent(ctx context.Context, credential, text, locale string) map[string]any {
	if v == nil || len(v.cfg.IntentEndpoint) == 0 {
		return nil
	}

	var resp struct {
		IntentDetected bool           `json:"intentDetected"`
		Intent         map[string]any `json:"intent"`
	}
	if err := v.call(ctx, v.cfg.IntentEndpoint, credential, map[string]any{
		"text":   text,
		"locale": locale,
	}, &resp); err != nil {
		log.Debug().Err(err).Msg("Intent detection failed, treating as no intent...")
		return nil
	}

	if !resp.IntentDetected || resp.Intent == nil {
		return nil
	}
	return resp.Intent
}
