package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrUnauthenticated = errors.New("no active session")
	ErrForbidden       = errors.New("access denied")
	ErrNotFound        = errors.New("record not found")
	ErrInvalid         = errors.New("invalid request")
	ErrNoStorage       = errors.New("object storage is not configured")
)

// IsUniqueViolation reports whether err comes from a unique constraint.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func wrapLookup(what string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("unable to get %s: %w", what, err)
}

type PipelineStage = string

const (
	StageUpload     = PipelineStage("upload")
	StageMessage    = PipelineStage("message")
	StageAttachment = PipelineStage("attachment")
	StageVoice      = PipelineStage("voice")
)

// PipelineError reports which step of a multi-step write failed.
// Ref and MessageID identify what earlier steps had produced,
// Compensated tells whether those artifacts were removed again.
type PipelineError struct {
	Stage       PipelineStage
	Ref         string
	MessageID   uint
	Compensated bool
	Err         error
}

func (v *PipelineError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", v.Stage, v.Err)
}

func (v *PipelineError) Unwrap() error {
	return v.Err
}

// SeedError is returned alongside a created channel when some of the
// initial members could not be added.
type SeedError struct {
	Failed []uint
	Err    error
}

func (v *SeedError) Error() string {
	return fmt.Sprintf("unable to add %d initial member(s): %v", len(v.Failed), v.Err)
}

func (v *SeedError) Unwrap() error {
	return v.Err
}
