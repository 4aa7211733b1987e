package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/winxky/cordova-plugman/pkg/platforms"
	"github.com/winxky/cordova-plugman/pkg/stores"
	"github.com/winxky/cordova-plugman/pkg/xmlpatch"
)

// Drift kinds.
const (
	DriftFile     = "file"
	DriftAsset    = "asset"
	DriftFragment = "fragment"
)

// Verify compares the mutations recorded for a project against its tree and
// reports every one that is no longer present.
func (o *Orchestrator) Verify(ctx context.Context, projectDir string) ([]Drift, error) {
	abs, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project path: %w", err)
	}

	unlock, err := o.lockProject(abs)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ctx, span := o.tracer.StartSpan(ctx, "plugin.verify")
	defer span.End()

	list, err := o.ledger.ListInstallations(ctx, abs)
	if err != nil {
		return nil, NewTransientError("failed to list installations", err).WithCode(ErrCodeLedger)
	}

	var drifts []Drift
	for _, inst := range list {
		if err := ctx.Err(); err != nil {
			return drifts, classify(err, inst.PluginID, "verify")
		}

		found, err := verifyInstallation(inst)
		if err != nil {
			return drifts, err
		}
		for range found {
			o.metrics.RecordDriftDetection(inst.Platform)
		}
		drifts = append(drifts, found...)
	}

	if len(drifts) > 0 {
		o.logger.WithProject(abs).Warnf("%d recorded mutations are missing", len(drifts))
	}
	return drifts, nil
}

func verifyInstallation(inst *stores.Installation) ([]Drift, error) {
	var muts platforms.Mutations
	if err := json.Unmarshal([]byte(inst.Mutations), &muts); err != nil {
		return nil, NewPermanentError("corrupt ledger entry", err).
			WithCode(ErrCodeLedger).
			WithResource(inst.PluginID)
	}

	drift := func(kind, path, detail string) Drift {
		return Drift{PluginID: inst.PluginID, Platform: inst.Platform, Kind: kind, Path: path, Detail: detail}
	}

	var drifts []Drift
	for _, rel := range muts.Files {
		if !pathExists(filepath.Join(inst.ProjectPath, rel)) {
			drifts = append(drifts, drift(DriftFile, rel, "missing"))
		}
	}
	for _, path := range muts.Assets {
		if !pathExists(path) {
			drifts = append(drifts, drift(DriftAsset, path, "missing"))
		}
	}

	for _, frag := range muts.Fragments {
		path := filepath.Join(inst.ProjectPath, frag.Target)
		if !pathExists(path) {
			drifts = append(drifts, drift(DriftFragment, frag.Target, "document missing"))
			continue
		}
		doc, err := xmlpatch.LoadDocument(path)
		if err != nil {
			drifts = append(drifts, drift(DriftFragment, frag.Target, err.Error()))
			continue
		}
		elements, err := xmlpatch.ParseFragment(frag.XML)
		if err != nil {
			return nil, NewPermanentError("corrupt ledger entry", err).
				WithCode(ErrCodeLedger).
				WithResource(inst.PluginID)
		}
		ok, err := xmlpatch.Contains(doc, elements, frag.Selector)
		switch {
		case errors.Is(err, xmlpatch.ErrAnchorNotFound):
			drifts = append(drifts, drift(DriftFragment, frag.Target, "anchor "+frag.Selector+" missing"))
		case err != nil:
			return nil, err
		case !ok:
			drifts = append(drifts, drift(DriftFragment, frag.Target, "fragment missing under "+frag.Selector))
		}
	}

	return drifts, nil
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
