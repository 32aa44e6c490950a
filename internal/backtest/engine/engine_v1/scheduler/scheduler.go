package scheduler

import (
	"fmt"
	"time"

	"github.com/rxtech-lab/argo-ashare/internal/logger"
	"github.com/rxtech-lab/argo-ashare/internal/types"
	"github.com/rxtech-lab/argo-ashare/internal/utils"
	"github.com/rxtech-lab/argo-ashare/pkg/errors"
	"go.uber.org/zap"
)

// AfterClose is the trigger for callbacks that run once per session day after
// the last bar of the day.
const AfterClose = "after_close"

// Callback receives a snapshot that is only valid for the duration of the call.
type Callback = func(snapshot types.Snapshot) error

type task struct {
	trigger  string
	callback Callback
}

// Scheduler dispatches callbacks registered against an "HH:MM" clock time or
// against AfterClose. Callbacks sharing a trigger run in registration order.
// A failing callback is logged and never stops the others.
type Scheduler struct {
	daily      []task
	afterClose []task
	log        *logger.Logger
}

func NewScheduler(log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Scheduler{log: log}
}

// Register adds callback under trigger, which is either AfterClose or an
// "HH:MM" clock time.
func (s *Scheduler) Register(trigger string, callback Callback) error {
	if callback == nil {
		return errors.Newf(errors.ErrCodeInvalidParameter, "nil callback for trigger %q", trigger)
	}

	if trigger == AfterClose {
		s.afterClose = append(s.afterClose, task{trigger: trigger, callback: callback})

		return nil
	}

	if err := ValidateTrigger(trigger); err != nil {
		return err
	}

	s.daily = append(s.daily, task{trigger: trigger, callback: callback})

	return nil
}

// ValidateTrigger checks that trigger is a well-formed "HH:MM" clock time.
func ValidateTrigger(trigger string) error {
	if len(trigger) != 5 || trigger[2] != ':' {
		return errors.Newf(errors.ErrCodeInvalidTrigger, "malformed trigger %q, expected HH:MM", trigger)
	}

	if _, err := time.Parse(utils.ClockLayout, trigger); err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidTrigger, err, "malformed trigger %q, expected HH:MM", trigger)
	}

	return nil
}

// DispatchBar runs every clock callback whose trigger equals ts formatted as
// "HH:MM". It returns the failures, which have already been logged.
func (s *Scheduler) DispatchBar(ts time.Time, snapshot types.Snapshot) []error {
	clock := utils.ClockKey(ts)

	var failures []error

	for _, t := range s.daily {
		if t.trigger != clock {
			continue
		}

		if err := s.invoke(t, snapshot); err != nil {
			failures = append(failures, err)
		}
	}

	return failures
}

// DispatchAfterClose runs every AfterClose callback.
func (s *Scheduler) DispatchAfterClose(snapshot types.Snapshot) []error {
	var failures []error

	for _, t := range s.afterClose {
		if err := s.invoke(t, snapshot); err != nil {
			failures = append(failures, err)
		}
	}

	return failures
}

// Len returns the number of registered callbacks.
func (s *Scheduler) Len() int {
	return len(s.daily) + len(s.afterClose)
}

func (s *Scheduler) invoke(t task, snapshot types.Snapshot) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf(errors.ErrCodeCallbackFailed, "callback for %s panicked: %v", t.trigger, r)
		}

		if err != nil {
			s.log.Error("Scheduled callback failed",
				zap.String("trigger", t.trigger),
				logger.BarTime(snapshot.Time),
				zap.Error(err),
			)
		}
	}()

	if cbErr := t.callback(snapshot); cbErr != nil {
		return errors.Wrap(errors.ErrCodeCallbackFailed, fmt.Sprintf("callback for %s failed", t.trigger), cbErr)
	}

	return nil
}
