// Command jsonl-importer serves activity history from a JSON Lines file to
// worktally. The file path comes from the "path" option; each line holds
// {"timestamp","project","category","durationMs"}.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/go-plugin"

	importerrpc "worktally/internal/modules/importer/adapter/out/rpc"
)

type line struct {
	Timestamp  int64  `json:"timestamp"`
	Project    string `json:"project"`
	Category   string `json:"category"`
	DurationMs int64  `json:"durationMs"`
}

type server struct{}

func (s *server) GetMetadata(_ context.Context, _ *importerrpc.Empty) (*importerrpc.Metadata, error) {
	return &importerrpc.Metadata{Name: "jsonl", Version: "1.0.0", Source: "jsonl"}, nil
}

func (s *server) FetchActivity(ctx context.Context, in *importerrpc.FetchActivityRequest) (*importerrpc.FetchActivityResponse, error) {
	path := strings.TrimSpace(in.Options["path"])
	if path == "" {
		return nil, fmt.Errorf("option %q is required", "path")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	defer f.Close()

	out := &importerrpc.FetchActivityResponse{Records: []importerrpc.ActivityRecord{}}
	scanner := bufio.NewScanner(f)
	n := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var l line
		if err := json.Unmarshal([]byte(raw), &l); err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		if l.Timestamp < in.FromMs || (in.ToMs > 0 && l.Timestamp >= in.ToMs) {
			continue
		}
		out.Records = append(out.Records, importerrpc.ActivityRecord{
			Timestamp:  l.Timestamp,
			Project:    l.Project,
			Category:   l.Category,
			DurationMs: l.DurationMs,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return out, nil
}

func main() {
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: importerrpc.HandshakeConfig,
		Plugins:         importerrpc.PluginMap(&server{}),
		GRPCServer:      plugin.DefaultGRPCServer,
	})
}
