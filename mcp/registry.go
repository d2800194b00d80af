package mcp

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"moochat/model"
)

// Lister is the part of the backend API the registry reads from.
type Lister interface {
	ListMCPConfigs(ctx context.Context) ([]model.MCPConfig, error)
	ListConfigTools(ctx context.Context, configID string) ([]model.MCPTool, error)
}

// maxConcurrentFetches bounds the per-config tool requests of one refresh.
const maxConcurrentFetches = 4

// Registry caches the user's MCP configurations and the tools each exposes.
type Registry struct {
	lister Lister

	mu      sync.RWMutex
	configs []model.MCPConfig
	tools   map[string][]model.MCPTool
	errs    map[string]error
}

func NewRegistry(lister Lister) *Registry {
	return &Registry{
		lister: lister,
		tools:  make(map[string][]model.MCPTool),
		errs:   make(map[string]error),
	}
}

// Refresh reloads the config list, then fetches every config's tools in
// parallel. A failing config does not fail the refresh; its error is kept
// and reported by ToolError.
func (r *Registry) Refresh(ctx context.Context) error {
	configs, err := r.lister.ListMCPConfigs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list MCP configs: %w", err)
	}

	tools := make([][]model.MCPTool, len(configs))
	errs := make([]error, len(configs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)
	for i, cfg := range configs {
		g.Go(func() error {
			tools[i], errs[i] = r.lister.ListConfigTools(gctx, cfg.ID)
			if errs[i] != nil {
				debugf("failed to list tools for %s: %v", cfg.Name, errs[i])
			}
			return nil
		})
	}
	g.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs = configs
	r.tools = make(map[string][]model.MCPTool, len(configs))
	r.errs = make(map[string]error)
	for i, cfg := range configs {
		if errs[i] != nil {
			r.errs[cfg.ID] = errs[i]
			continue
		}
		r.tools[cfg.ID] = tools[i]
	}
	return nil
}

// Configs returns the cached configurations sorted by name.
func (r *Registry) Configs() []model.MCPConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := append([]model.MCPConfig(nil), r.configs...)
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

func (r *Registry) Tools(configID string) []model.MCPTool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]model.MCPTool(nil), r.tools[configID]...)
}

// ToolError returns the error of the last tool fetch for configID, if any.
func (r *Registry) ToolError(configID string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.errs[configID]
}

// QualifiedName returns "<config name>.<tool name>".
func QualifiedName(configName, toolName string) string {
	return configName + "." + toolName
}

// SplitQualifiedName is the inverse of QualifiedName. Names without a dot
// have no config part.
func SplitQualifiedName(name string) (configName, toolName string) {
	idx := strings.Index(name, ".")
	if idx == -1 {
		return "", name
	}
	return name[:idx], name[idx+1:]
}

// Lookup finds the config and tool a proposed tool use refers to. The
// assistant usually reports bare tool names, so the first config exposing a
// tool with that name wins, in config name order. Qualified names are
// matched against the config name as well.
func (r *Registry) Lookup(toolName string) (model.MCPConfig, model.MCPTool, bool) {
	configs := r.Configs()
	for _, cfg := range configs {
		for _, t := range r.Tools(cfg.ID) {
			if t.Name == toolName {
				return cfg, t, true
			}
		}
	}

	cfgName, bare := SplitQualifiedName(toolName)
	if cfgName == "" {
		return model.MCPConfig{}, model.MCPTool{}, false
	}
	for _, cfg := range configs {
		if cfg.Name != cfgName {
			continue
		}
		for _, t := range r.Tools(cfg.ID) {
			if t.Name == bare {
				return cfg, t, true
			}
		}
	}
	return model.MCPConfig{}, model.MCPTool{}, false
}
