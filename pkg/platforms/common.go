package platforms

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/beevik/etree"

	"github.com/winxky/cordova-plugman/pkg/fileops"
	"github.com/winxky/cordova-plugman/pkg/manifest"
	"github.com/winxky/cordova-plugman/pkg/telemetry"
	"github.com/winxky/cordova-plugman/pkg/xmlpatch"
)

// layout captures what differs between platforms. Paths are relative to the
// project directory.
type layout interface {
	name() string
	defaultWWW() string
	sourceTarget(projectDir string, sf manifest.SourceFile) (string, error)
	pruneBoundary(projectDir string) (string, error)
	configTarget(projectDir, target string) (string, error)
	variables(projectDir string) map[string]string
}

// handler implements Handler on top of a layout.
type handler struct {
	layout layout
}

func (h *handler) Name() string {
	return h.layout.name()
}

func (h *handler) WWWDir(projectDir string, opts Options) string {
	if opts.WWWDir != "" {
		if filepath.IsAbs(opts.WWWDir) {
			return filepath.Clean(opts.WWWDir)
		}
		return filepath.Join(projectDir, opts.WWWDir)
	}
	return filepath.Join(projectDir, h.layout.defaultWWW())
}

func (h *handler) Install(ctx context.Context, req InstallRequest) (muts *Mutations, err error) {
	logger := telemetry.FromContext(ctx).WithPlatform(h.Name()).WithPlugin(req.PluginID)

	spec := req.Spec.WithVariables(h.resolveVariables(req.ProjectDir, req.Options))

	// The recorded entries hold only config-file elements this install inserted.
	applied := spec.Clone()
	applied.ConfigFiles = nil
	muts = &Mutations{Spec: applied}

	for _, sf := range spec.SourceFiles {
		rel, err := h.layout.sourceTarget(req.ProjectDir, sf)
		if err != nil {
			return muts, err
		}
		if err := fileops.CopyFile(req.PluginDir, sf.Src, req.ProjectDir, rel); err != nil {
			return muts, fmt.Errorf("source-file %s: %w", sf.Src, err)
		}
		logger.Debugf("copied %s to %s", sf.Src, rel)
		muts.Files = append(muts.Files, rel)
	}

	docs := newDocumentSet(req.ProjectDir)
	defer func() {
		// Grafts applied before a failure stay applied.
		if flushErr := docs.flush(); flushErr != nil {
			err = errors.Join(err, flushErr)
		}
	}()

	for _, cf := range spec.ConfigFiles {
		target, err := h.layout.configTarget(req.ProjectDir, cf.Target)
		if err != nil {
			return muts, err
		}
		doc, err := docs.get(target)
		if err != nil {
			return muts, fmt.Errorf("config-file %s: %w", cf.Target, err)
		}
		if doc == nil {
			return muts, fmt.Errorf("config-file %s: %w", cf.Target,
				&os.PathError{Op: "open", Path: filepath.Join(req.ProjectDir, target), Err: os.ErrNotExist})
		}

		fragment, err := xmlpatch.ParseFragment(cf.Fragment)
		if err != nil {
			return muts, fmt.Errorf("config-file %s: %w", cf.Target, err)
		}

		inserted, err := xmlpatch.Graft(doc, fragment, cf.Parent, xmlpatch.Placement{Mode: cf.Mode, After: cf.AfterTags()})
		if err != nil {
			return muts, fmt.Errorf("config-file %s: %w", cf.Target, err)
		}
		if len(inserted) == 0 {
			logger.Debugf("fragment already present in %s at %s", target, cf.Parent)
			continue
		}
		docs.markDirty(target)
		logger.Debugf("grafted %d of %d elements into %s at %s", len(inserted), len(fragment), target, cf.Parent)

		xml, err := xmlpatch.FragmentString(inserted)
		if err != nil {
			return muts, fmt.Errorf("config-file %s: %w", cf.Target, err)
		}
		cf.Fragment = xml
		applied.ConfigFiles = append(applied.ConfigFiles, cf)
		muts.Fragments = append(muts.Fragments, GraftedFragment{Target: target, Selector: cf.Parent, XML: xml})
	}

	www := h.WWWDir(req.ProjectDir, req.Options)
	for _, asset := range spec.Assets {
		if err := fileops.CopyTree(req.PluginDir, asset.Src, www, asset.Target); err != nil {
			return muts, fmt.Errorf("asset %s: %w", asset.Src, err)
		}
		muts.Assets = append(muts.Assets, filepath.Join(www, asset.Target))
	}

	logger.Infof("installed %d files, %d fragments, %d assets", len(muts.Files), len(muts.Fragments), len(muts.Assets))
	return muts, nil
}

func (h *handler) Uninstall(ctx context.Context, req UninstallRequest) (err error) {
	logger := telemetry.FromContext(ctx).WithPlatform(h.Name()).WithPlugin(req.PluginID)

	// Entries come from the ledger with variables already substituted.
	spec := req.Spec.Clone()

	boundary, err := h.layout.pruneBoundary(req.ProjectDir)
	if err != nil {
		return err
	}
	for _, sf := range spec.SourceFiles {
		rel, err := h.layout.sourceTarget(req.ProjectDir, sf)
		if err != nil {
			return err
		}
		if err := fileops.DeleteAndPrune(req.ProjectDir, rel, boundary); err != nil {
			return fmt.Errorf("source-file %s: %w", sf.Src, err)
		}
		logger.Debugf("removed %s", rel)
	}

	docs := newDocumentSet(req.ProjectDir)
	defer func() {
		if flushErr := docs.flush(); flushErr != nil {
			err = errors.Join(err, flushErr)
		}
	}()

	for _, cf := range spec.ConfigFiles {
		target, err := h.layout.configTarget(req.ProjectDir, cf.Target)
		if err != nil {
			return err
		}
		doc, err := docs.get(target)
		if err != nil {
			return fmt.Errorf("config-file %s: %w", cf.Target, err)
		}
		if doc == nil {
			logger.Warnf("config file %s is missing, nothing to prune", target)
			continue
		}

		fragment, err := xmlpatch.ParseFragment(cf.Fragment)
		if err != nil {
			return fmt.Errorf("config-file %s: %w", cf.Target, err)
		}

		changed, err := xmlpatch.Prune(doc, fragment, cf.Parent)
		if err != nil {
			return fmt.Errorf("config-file %s: %w", cf.Target, err)
		}
		if !changed {
			logger.Warnf("fragment not found in %s at %s", target, cf.Parent)
			continue
		}
		docs.markDirty(target)
	}

	www := h.WWWDir(req.ProjectDir, req.Options)
	for _, asset := range spec.Assets {
		if err := fileops.RemoveAll(www, asset.Target); err != nil {
			return fmt.Errorf("asset %s: %w", asset.Target, err)
		}
	}
	if err := fileops.RemoveAll(www, filepath.Join("plugins", req.PluginID)); err != nil {
		return err
	}

	logger.Info("uninstalled")
	return nil
}

// resolveVariables merges the platform's derived variables with the caller's,
// the caller winning.
func (h *handler) resolveVariables(projectDir string, opts Options) map[string]string {
	vars := h.layout.variables(projectDir)
	if vars == nil {
		vars = make(map[string]string)
	}
	for k, v := range opts.Variables {
		vars[k] = v
	}
	return vars
}

// documentSet loads each target document once and writes each changed one
// once, in first-use order.
type documentSet struct {
	root  string
	docs  map[string]*etree.Document
	order []string
	dirty map[string]bool
}

func newDocumentSet(root string) *documentSet {
	return &documentSet{
		root:  root,
		docs:  make(map[string]*etree.Document),
		dirty: make(map[string]bool),
	}
}

// get returns the document at rel, or nil if the file does not exist.
func (s *documentSet) get(rel string) (*etree.Document, error) {
	if doc, ok := s.docs[rel]; ok {
		return doc, nil
	}

	path := filepath.Join(s.root, rel)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	doc, err := xmlpatch.LoadDocument(path)
	if err != nil {
		return nil, err
	}
	s.docs[rel] = doc
	s.order = append(s.order, rel)
	return doc, nil
}

func (s *documentSet) markDirty(rel string) {
	s.dirty[rel] = true
}

func (s *documentSet) flush() error {
	var errs []error
	for _, rel := range s.order {
		if !s.dirty[rel] {
			continue
		}
		if err := xmlpatch.SaveDocument(s.docs[rel], filepath.Join(s.root, rel)); err != nil {
			errs = append(errs, err)
			continue
		}
		delete(s.dirty, rel)
	}
	return errors.Join(errs...)
}
