package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"

	"worktally/internal/modules/importer/domain"
	"worktally/internal/modules/importer/dto"
	importerout "worktally/internal/modules/importer/port/out"
)

type ImporterService struct {
	store importerout.ManifestStore
	host  importerout.Host
}

func NewImporterService(store importerout.ManifestStore, host importerout.Host) *ImporterService {
	return &ImporterService{store: store, host: host}
}

func (s *ImporterService) List(ctx context.Context) ([]dto.PluginInfo, error) {
	manifests, err := s.loadValidated(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.PluginInfo, 0, len(manifests))
	for _, m := range manifests {
		out = append(out, dto.PluginInfo{Name: m.Name, Version: m.Version, Enabled: m.Enabled, Binary: m.Binary})
	}
	return out, nil
}

func (s *ImporterService) Doctor(ctx context.Context) ([]dto.DoctorResult, error) {
	manifests, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]dto.DoctorResult, 0, len(manifests))
	for _, m := range manifests {
		result := dto.DoctorResult{Name: m.Name}
		if err := m.Validate(); err != nil {
			result.Error = err.Error()
			results = append(results, result)
			continue
		}
		result.BinaryReachable = fileExists(m.Binary)
		if !result.BinaryReachable {
			result.Error = fmt.Sprintf("binary does not exist: %s", m.Binary)
			results = append(results, result)
			continue
		}
		result.ChecksumValid = checksumMatches(m.Binary, m.SHA256) == nil
		if !result.ChecksumValid {
			result.Error = "checksum mismatch"
			results = append(results, result)
			continue
		}
		if m.Enabled && s.host != nil {
			if err := s.host.CheckLifecycle(ctx, m); err != nil {
				result.Error = err.Error()
			} else {
				result.LifecycleOK = true
			}
		}
		results = append(results, result)
	}
	return results, nil
}

// Fetch verifies the named plugin and returns the activity it reports for
// the requested range. Manifest options are merged under request options.
func (s *ImporterService) Fetch(ctx context.Context, pluginName string, req domain.FetchRequest) ([]domain.ActivityRecord, domain.Metadata, error) {
	if err := req.Validate(); err != nil {
		return nil, domain.Metadata{}, err
	}
	manifest, err := s.getRunnableManifest(ctx, pluginName)
	if err != nil {
		return nil, domain.Metadata{}, err
	}
	meta, err := s.host.GetMetadata(ctx, manifest)
	if err != nil {
		return nil, domain.Metadata{}, wrapTimeout(err, pluginName)
	}
	options := map[string]string{}
	maps.Copy(options, manifest.Options)
	maps.Copy(options, req.Options)
	req.Options = options

	records, err := s.host.FetchActivity(ctx, manifest, req)
	if err != nil {
		return nil, domain.Metadata{}, wrapTimeout(err, pluginName)
	}
	return records, meta, nil
}

func (s *ImporterService) loadValidated(ctx context.Context) ([]domain.Manifest, error) {
	manifests, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	for _, m := range manifests {
		if err := m.Validate(); err != nil {
			return nil, err
		}
		if _, ok := seen[m.Name]; ok {
			return nil, fmt.Errorf("duplicate plugin name: %s", m.Name)
		}
		seen[m.Name] = struct{}{}
	}
	return manifests, nil
}

func (s *ImporterService) getRunnableManifest(ctx context.Context, pluginName string) (domain.Manifest, error) {
	manifests, err := s.loadValidated(ctx)
	if err != nil {
		return domain.Manifest{}, err
	}
	var manifest domain.Manifest
	found := false
	for _, m := range manifests {
		if m.Name == pluginName {
			manifest, found = m, true
			break
		}
	}
	if !found {
		return domain.Manifest{}, fmt.Errorf("%w: %q", domain.ErrPluginNotFound, pluginName)
	}
	if !manifest.Enabled {
		return domain.Manifest{}, fmt.Errorf("%w: %s", domain.ErrPluginDisabled, pluginName)
	}
	if err := checksumMatches(manifest.Binary, manifest.SHA256); err != nil {
		return domain.Manifest{}, err
	}
	if s.host == nil {
		return domain.Manifest{}, fmt.Errorf("no plugin host configured")
	}
	if err := s.host.CheckLifecycle(ctx, manifest); err != nil {
		return domain.Manifest{}, wrapTimeout(err, pluginName)
	}
	return manifest, nil
}

func wrapTimeout(err error, pluginName string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s", domain.ErrPluginTimeout, pluginName)
	}
	return err
}

func checksumMatches(path string, expected string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read plugin binary: %w", err)
	}
	hash := sha256.Sum256(payload)
	if hex.EncodeToString(hash[:]) != expected {
		return fmt.Errorf("%w: %s", domain.ErrChecksumMismatch, filepath.Base(path))
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
