package out

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"time"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"

	importerrpc "worktally/internal/modules/importer/adapter/out/rpc"
	"worktally/internal/modules/importer/domain"
	importerout "worktally/internal/modules/importer/port/out"
)

const (
	defaultStartTimeout = 3 * time.Second
	defaultCallTimeout  = 5 * time.Second
	// Fetching a long history can take a while on the plugin side.
	defaultFetchTimeout = 2 * time.Minute
)

type GRPCHost struct {
	logOutput io.Writer
}

// NewGRPCHost launches plugins as child processes. Plugin log lines at warn
// level and above go to logOutput; nil discards them.
func NewGRPCHost(logOutput io.Writer) importerout.Host {
	if logOutput == nil {
		logOutput = io.Discard
	}
	return &GRPCHost{logOutput: logOutput}
}

func (h *GRPCHost) CheckLifecycle(ctx context.Context, manifest domain.Manifest) error {
	_, err := h.GetMetadata(ctx, manifest)
	return err
}

func (h *GRPCHost) GetMetadata(ctx context.Context, manifest domain.Manifest) (domain.Metadata, error) {
	client, closeFn, err := h.connect(manifest)
	if err != nil {
		return domain.Metadata{}, err
	}
	defer closeFn()

	callCtx, cancel := callContext(ctx, defaultCallTimeout)
	defer cancel()
	meta, err := client.GetMetadata(callCtx)
	if err != nil {
		return domain.Metadata{}, fmt.Errorf("get metadata: %w", err)
	}
	return domain.Metadata{Name: meta.Name, Version: meta.Version, Source: meta.Source}, nil
}

func (h *GRPCHost) FetchActivity(ctx context.Context, manifest domain.Manifest, req domain.FetchRequest) ([]domain.ActivityRecord, error) {
	client, closeFn, err := h.connect(manifest)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	callCtx, cancel := callContext(ctx, defaultFetchTimeout)
	defer cancel()
	response, err := client.FetchActivity(callCtx, &importerrpc.FetchActivityRequest{
		FromMs:  req.FromMs,
		ToMs:    req.ToMs,
		Options: req.Options,
	})
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: %s", domain.ErrPluginTimeout, manifest.Name)
		}
		return nil, fmt.Errorf("fetch activity: %w", err)
	}
	out := make([]domain.ActivityRecord, 0, len(response.Records))
	for _, r := range response.Records {
		out = append(out, domain.ActivityRecord{
			Timestamp:  r.Timestamp,
			Project:    r.Project,
			Category:   r.Category,
			DurationMs: r.DurationMs,
		})
	}
	return out, nil
}

func (h *GRPCHost) connect(manifest domain.Manifest) (importerrpc.ImporterClient, func(), error) {
	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig:  importerrpc.HandshakeConfig,
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolGRPC},
		Plugins:          importerrpc.PluginMap(nil),
		Cmd:              exec.Command(manifest.Binary),
		Managed:          true,
		StartTimeout:     defaultStartTimeout,
		Logger: hclog.New(&hclog.LoggerOptions{
			Name:   "importer." + manifest.Name,
			Output: h.logOutput,
			Level:  hclog.Warn,
		}),
	})
	closeFn := func() { client.Kill() }

	rpcClient, err := client.Client()
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("start plugin client: %w", err)
	}
	raw, err := rpcClient.Dispense(importerrpc.PluginMapKey)
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("dispense plugin: %w", err)
	}
	typed, ok := raw.(importerrpc.ImporterClient)
	if !ok {
		closeFn()
		return nil, nil, fmt.Errorf("plugin rpc client type mismatch")
	}
	return typed, closeFn, nil
}

func callContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := parent.Deadline(); ok {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}
