package regen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/brain/internal/apperr"
	"github.com/starford/brain/internal/changes"
)

// View names used by Refresh and as change-detector resource names.
const (
	ViewIndex          = "view:index"
	ViewSystem         = "view:system"
	ViewInfrastructure = "view:infrastructure"
)

// RefreshOptions control Refresh.
type RefreshOptions struct {
	// Force rebuilds every view whether or not its target changed.
	Force bool
	// DryRun only reports staleness.
	DryRun bool
}

// ViewStatus reports what Refresh did for one derived view.
type ViewStatus struct {
	View    string `json:"view"`
	Path    string `json:"path"`
	Stale   bool   `json:"stale"`
	Written bool   `json:"written"`
	Skipped bool   `json:"skipped,omitempty"`
}

type view struct {
	name    string
	path    string
	target  changes.Resource
	rebuild func(context.Context) (bool, error)
}

func (r *Regenerator) views() []view {
	return []view{
		{ViewIndex, r.paths.Index, changes.Resource{Name: ViewIndex, Path: "", Kind: changes.KindDirectory}, r.rebuildIndex},
		{ViewSystem, r.paths.System, changes.Resource{Name: ViewSystem, Path: "", Kind: changes.KindDirectory}, r.RebuildSystem},
		{ViewInfrastructure, r.paths.InfraOverview, changes.Resource{Name: ViewInfrastructure, Path: r.paths.Infrastructure, Kind: changes.KindDirectory}, r.RebuildInfrastructure},
	}
}

// Refresh rebuilds every derived view whose watched target changed since the
// last refresh. All staleness is decided before anything is written, and the
// hashes recorded afterwards include the freshly written views, so an
// immediate second Refresh finds nothing to do.
func (r *Regenerator) Refresh(ctx context.Context, opts RefreshOptions) ([]ViewStatus, error) {
	vs := r.views()
	statuses := make([]ViewStatus, len(vs))

	for i, v := range vs {
		statuses[i] = ViewStatus{View: v.name, Path: v.path, Stale: true}
		if r.detector == nil {
			continue
		}
		if err := r.detector.Register(v.target); err != nil {
			return nil, err
		}
		stale, err := r.detector.HasChanged(v.name)
		if err != nil {
			return nil, fmt.Errorf("regen: refresh %s: %w", v.name, err)
		}
		statuses[i].Stale = stale
	}
	if opts.DryRun {
		return statuses, nil
	}

	for i, v := range vs {
		if !statuses[i].Stale && !opts.Force {
			continue
		}
		written, err := v.rebuild(ctx)
		if errors.Is(err, apperr.ErrNotFound) {
			r.log.Info("regen: skipping view", slog.String("view", v.name), slog.String("reason", err.Error()))
			statuses[i].Skipped = true
			continue
		}
		if err != nil {
			return statuses, err
		}
		statuses[i].Written = written
	}

	if r.detector == nil {
		return statuses, nil
	}
	for i, v := range vs {
		if !statuses[i].Stale && !opts.Force {
			continue
		}
		hash, err := r.detector.Current(v.name)
		if err != nil {
			return statuses, fmt.Errorf("regen: refresh %s: %w", v.name, err)
		}
		snap, err := r.detector.Snapshot(v.name)
		if err != nil {
			return statuses, fmt.Errorf("regen: refresh %s: %w", v.name, err)
		}
		if err := r.detector.RecordSeen(v.name, hash, snap); err != nil {
			return statuses, err
		}
	}
	return statuses, nil
}
