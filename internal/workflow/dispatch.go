package workflow

import (
	"context"
	"fmt"

	"github.com/eightd/eightd/internal/models"
)

// Action is a request to mutate controller state. Views and transports
// describe what the user did as an Action and hand it to Dispatch.
type Action interface {
	actionName() string
}

// SelectFileAction picks (or with a nil File, clears) the file to upload.
type SelectFileAction struct{ File *models.AudioFile }

// SetPanningFrequencyAction moves the panning slider.
type SetPanningFrequencyAction struct{ Value int }

// SetAmplitudeAction moves the amplitude slider.
type SetAmplitudeAction struct{ Value int }

// SubmitAction starts an upload. With Wait set, Dispatch blocks until it finishes.
type SubmitAction struct{ Wait bool }

// CancelAction abandons the in-flight upload.
type CancelAction struct{}

// DismissAction closes the confirmation view, with or without downloading.
type DismissAction struct{}

func (SelectFileAction) actionName() string          { return "select_file" }
func (SetPanningFrequencyAction) actionName() string { return "set_panning_frequency" }
func (SetAmplitudeAction) actionName() string        { return "set_amplitude" }
func (SubmitAction) actionName() string              { return "submit" }
func (CancelAction) actionName() string              { return "cancel" }
func (DismissAction) actionName() string             { return "dismiss" }

// Dispatch applies action and returns the resulting snapshot. The error is
// whatever the underlying operation reported; the snapshot is always valid.
func (c *Controller) Dispatch(ctx context.Context, action Action) (Snapshot, error) {
	var err error
	switch a := action.(type) {
	case SelectFileAction:
		c.SelectFile(a.File)
	case SetPanningFrequencyAction:
		c.SetPanningFrequency(a.Value)
	case SetAmplitudeAction:
		c.SetAmplitude(a.Value)
	case SubmitAction:
		if a.Wait {
			err = c.Submit(ctx)
		} else {
			err = c.Start(ctx)
		}
	case CancelAction:
		c.Cancel()
	case DismissAction:
		c.DismissResult()
	default:
		err = fmt.Errorf("unknown action %T", action)
	}

	if err != nil {
		c.logger.Debug().Err(err).Str("session", c.id).Str("action", actionName(action)).Msg("Action rejected")
	}
	return c.Snapshot(), err
}

func actionName(a Action) string {
	if a == nil {
		return "nil"
	}
	return a.actionName()
}
