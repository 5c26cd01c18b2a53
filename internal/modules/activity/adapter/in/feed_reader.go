package in

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"worktally/internal/modules/activity/dto"
	activityin "worktally/internal/modules/activity/port/in"
	apperrors "worktally/internal/platform/errors"
	"worktally/internal/platform/logging"
)

// feedLine is one heartbeat as written by the activity sampler.
type feedLine struct {
	Timestamp    int64  `json:"timestamp"`
	Project      string `json:"project"`
	ActivityType string `json:"activityType"`
}

type FeedStats struct {
	Pushed   int
	Rejected int
}

// FeedReader pushes newline-delimited JSON heartbeats into the tracker.
// Malformed or invalid lines are logged and skipped; storage errors stop
// the feed.
type FeedReader struct {
	usecase activityin.Usecase
	logger  *slog.Logger
}

func NewFeedReader(usecase activityin.Usecase, logger *slog.Logger) FeedReader {
	return FeedReader{usecase: usecase, logger: logging.OrDefault(logger)}
}

// Run consumes r until EOF or until ctx is cancelled. A cancelled context
// returns promptly even while r blocks; the pending read is abandoned.
func (f FeedReader) Run(ctx context.Context, r io.Reader) (FeedStats, error) {
	var stats FeedStats
	scanCtx, stopScan := context.WithCancel(ctx)
	defer stopScan()
	lines, readErr := scanLines(scanCtx, r)
	lineNo := 0
	for {
		var raw string
		select {
		case <-ctx.Done():
			return stats, nil
		case text, ok := <-lines:
			if !ok {
				if err := <-readErr; err != nil {
					return stats, fmt.Errorf("read heartbeat feed: %w", err)
				}
				return stats, nil
			}
			raw = strings.TrimSpace(text)
		}
		lineNo++
		if raw == "" {
			continue
		}
		var line feedLine
		if err := json.Unmarshal([]byte(raw), &line); err != nil {
			stats.Rejected++
			f.logger.Warn("skip malformed heartbeat", "line", lineNo, "error", err)
			continue
		}
		if line.Timestamp <= 0 {
			stats.Rejected++
			f.logger.Warn("skip heartbeat without timestamp", "line", lineNo)
			continue
		}
		_, err := f.usecase.PushHeartbeat(ctx, dto.PushHeartbeatInput{
			Timestamp:    line.Timestamp,
			Project:      line.Project,
			ActivityType: line.ActivityType,
		})
		switch {
		case err == nil:
			stats.Pushed++
		case errors.Is(err, apperrors.ErrInvalidInput):
			stats.Rejected++
			f.logger.Warn("skip invalid heartbeat", "line", lineNo, "error", err)
		case errors.Is(err, context.Canceled):
			return stats, nil
		default:
			return stats, fmt.Errorf("push heartbeat at line %d: %w", lineNo, err)
		}
	}
}

// scanLines reads r on its own goroutine. The lines channel is closed at EOF,
// after which readErr yields the scanner error (nil on clean EOF).
func scanLines(ctx context.Context, r io.Reader) (<-chan string, <-chan error) {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				readErr <- nil
				return
			}
		}
		readErr <- scanner.Err()
	}()
	return lines, readErr
}
