package out

import (
	"context"
	"fmt"

	"github.com/gen2brain/beeep"

	activityout "worktally/internal/modules/activity/port/out"
)

type DesktopNotifier struct{}

func NewDesktopNotifier(appName string) activityout.Notifier {
	if appName != "" {
		beeep.AppName = appName
	}
	return DesktopNotifier{}
}

func (DesktopNotifier) Notify(_ context.Context, title, message string) error {
	if err := beeep.Notify(title, message, ""); err != nil {
		return fmt.Errorf("desktop notification: %w", err)
	}
	return nil
}

// NoopNotifier is used when notifications are disabled.
type NoopNotifier struct{}

func (NoopNotifier) Notify(context.Context, string, string) error {
	return nil
}
