package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pavise/maskeval/internal/discovery"
	"github.com/pavise/maskeval/internal/projectconfig"
	"github.com/pavise/maskeval/internal/workspace"
)

// configDetectOptions returns workspace DetectOptions derived from project config.
func configDetectOptions() []workspace.DetectOption {
	wd, err := os.Getwd()
	if err != nil {
		return nil
	}
	cfg, err := projectconfig.Load(wd)
	if err != nil {
		return nil
	}
	return []workspace.DetectOption{
		workspace.WithDatasetsDir(strings.TrimSuffix(cfg.Paths.Datasets, "/")),
	}
}

// resolveWorkspace uses workspace detection to resolve datasets from CLI args.
// When a dataset name is given, ctx.Datasets is narrowed to that single dataset.
// Behavior:
//   - Explicit path to a file (e.g. eval.yaml) → returns context with all datasets (caller uses path directly)
//   - Dataset name arg + workspace → returns context with that single dataset
//   - No args + single-dataset workspace → returns context with that dataset
//   - No args + multi-dataset workspace → returns context with all datasets
//   - No workspace detected → returns error
func resolveWorkspace(args []string) (*workspace.WorkspaceContext, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}
	ctx, err := workspace.DetectContext(wd, configDetectOptions()...)
	if err != nil {
		return nil, fmt.Errorf("detecting workspace: %w", err)
	}

	if len(args) > 0 {
		arg := args[0]
		if workspace.LooksLikePath(arg) {
			return ctx, nil
		}
		if ctx.Type == workspace.ContextNone {
			return nil, fmt.Errorf("no workspace detected and %q is not a file path", arg)
		}
		di, err := workspace.FindDataset(ctx, arg)
		if err != nil {
			return nil, err
		}
		ctx.Datasets = []workspace.DatasetInfo{*di}
		return ctx, nil
	}

	switch ctx.Type {
	case workspace.ContextSingleDataset, workspace.ContextMultiDataset:
		return ctx, nil
	default:
		return nil, fmt.Errorf("no datasets detected in workspace; provide a path or dataset name")
	}
}

// resolveManifestArg maps the optional CLI argument to a single manifest path.
// An explicit path is used as-is; a dataset name or a bare invocation goes
// through workspace detection and must resolve to exactly one dataset.
func resolveManifestArg(args []string) (string, error) {
	if len(args) > 0 && workspace.LooksLikePath(args[0]) {
		path := args[0]
		if fi, err := os.Stat(path); err == nil && fi.IsDir() {
			path = filepath.Join(path, discovery.ManifestFilename)
		}
		return path, nil
	}

	ctx, err := resolveWorkspace(args)
	if err != nil {
		return "", err
	}
	if len(ctx.Datasets) == 1 {
		return ctx.Datasets[0].ManifestPath, nil
	}

	names := make([]string, 0, len(ctx.Datasets))
	for _, d := range ctx.Datasets {
		names = append(names, d.Name)
	}
	return "", fmt.Errorf("workspace has %d datasets (%s); name one", len(ctx.Datasets), strings.Join(names, ", "))
}
