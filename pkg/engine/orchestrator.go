package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/winxky/cordova-plugman/pkg/fileops"
	"github.com/winxky/cordova-plugman/pkg/manifest"
	"github.com/winxky/cordova-plugman/pkg/platforms"
	"github.com/winxky/cordova-plugman/pkg/policy"
	"github.com/winxky/cordova-plugman/pkg/stores"
	"github.com/winxky/cordova-plugman/pkg/telemetry"
)

// Orchestrator drives install and uninstall requests through the platform
// handlers and keeps the ledger in step with the project trees.
type Orchestrator struct {
	registry  *platforms.Registry
	manifests ManifestSource
	ledger    Ledger
	policies  PolicyEvaluator

	logger  *telemetry.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
	actor   string

	// lockDir holds one lock file per project, shared with other processes.
	lockDir string

	// mu protects locks.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *telemetry.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithTracer sets the tracer.
func WithTracer(t *telemetry.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

// WithPolicy gates installs on a policy evaluator.
func WithPolicy(p PolicyEvaluator) Option {
	return func(o *Orchestrator) { o.policies = p }
}

// WithActor sets the identity recorded in audit entries.
func WithActor(actor string) Option {
	return func(o *Orchestrator) { o.actor = actor }
}

// WithLockDir also serializes calls across processes, through lock files
// kept in dir.
func WithLockDir(dir string) Option {
	return func(o *Orchestrator) { o.lockDir = dir }
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(registry *platforms.Registry, manifests ManifestSource, ledger Ledger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry:  registry,
		manifests: manifests,
		ledger:    ledger,
		logger:    telemetry.NopLogger(),
		tracer:    telemetry.NoopTracer(),
		actor:     "plugman",
		locks:     make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.NewComponentLogger("orchestrator")
	return o
}

// HandlePlugin performs one install or uninstall. Calls for the same project
// are serialized. Mutations applied before a failure are not rolled back.
func (o *Orchestrator) HandlePlugin(ctx context.Context, req Request) (result *Result, err error) {
	timer := telemetry.NewTimer()
	result = &Result{
		Action:     req.Action,
		Platform:   req.Platform,
		PluginID:   req.PluginID,
		ProjectDir: req.ProjectDir,
	}

	opID := uuid.NewString()
	logger := o.logger.
		WithField("operation_id", opID).
		WithPlugin(req.PluginID).
		WithPlatform(req.Platform)

	ctx, span := o.tracer.StartPluginSpan(ctx, string(req.Action), req.PluginID, req.Platform, req.ProjectDir)
	ctx = logger.WithContext(ctx)

	defer func() {
		result.Duration = timer.Duration()
		o.finish(ctx, span, opID, result, err)
		span.End()
		if req.OnComplete != nil {
			req.OnComplete(result, err)
		}
	}()

	if err := validateRequest(req); err != nil {
		return result, classify(err, req.PluginID, req.Action)
	}

	projectDir, err := filepath.Abs(req.ProjectDir)
	if err != nil {
		return result, classify(fmt.Errorf("%w: project path: %v", ErrInvalidRequest, err), req.PluginID, req.Action)
	}
	result.ProjectDir = projectDir

	handler, err := o.registry.Get(req.Platform)
	if err != nil {
		return result, classify(err, req.PluginID, req.Action)
	}
	result.Platform = handler.Name()

	unlock, err := o.lockProject(projectDir)
	if err != nil {
		return result, err
	}
	defer unlock()

	if err := ctx.Err(); err != nil {
		return result, classify(err, req.PluginID, req.Action)
	}

	switch req.Action {
	case ActionInstall:
		err = o.install(ctx, handler, projectDir, req, result)
	case ActionUninstall:
		err = o.uninstall(ctx, handler, projectDir, req, result)
	}
	if err != nil {
		return result, classify(err, result.PluginID, req.Action)
	}

	return result, nil
}

// finish logs, measures and audits a finished call.
func (o *Orchestrator) finish(ctx context.Context, span trace.Span, opID string, result *Result, err error) {
	logger := telemetry.FromContext(ctx).WithProject(result.ProjectDir)
	files, fragments := result.Mutations.Count()

	status := stores.OutcomeSuccess
	switch {
	case err != nil:
		status = stores.OutcomeFailure
		code := CodeOf(err)
		o.metrics.RecordError(code)
		span.SetAttributes(telemetry.AttrErrorCode.String(code))
		telemetry.RecordError(span, err)
		logger.WithError(err).Error(string(result.Action) + " failed")
	case result.Noop:
		status = stores.OutcomeNoop
		telemetry.RecordSuccess(span)
		logger.Infof("plugin declares nothing for %s", result.Platform)
	default:
		telemetry.RecordSuccess(span)
		logger.Infof("%s complete: %d files, %d fragments", result.Action, files, fragments)
	}

	span.SetAttributes(telemetry.AttrFiles.Int(files), telemetry.AttrFragments.Int(fragments))
	o.metrics.RecordOperation(string(result.Action), result.Platform, status, result.Duration)
	o.metrics.RecordMutations(string(result.Action), result.Platform, files, fragments)
	o.audit(ctx, opID, result, status, err)
}

func (o *Orchestrator) install(ctx context.Context, handler platforms.Handler, projectDir string, req Request, result *Result) error {
	m, err := o.loadManifest(req.PluginsDir, req.PluginID)
	if err != nil {
		return err
	}
	result.PluginID = m.ID
	result.Version = m.Version

	spec := m.ForPlatform(handler.Name())
	if spec.Empty() {
		result.Noop = true
		return nil
	}

	if err := o.checkPolicy(ctx, m, handler.Name(), projectDir, result); err != nil {
		return err
	}

	muts, err := handler.Install(ctx, platforms.InstallRequest{
		Spec:       spec,
		PluginID:   m.ID,
		PluginDir:  m.Dir,
		ProjectDir: projectDir,
		Options:    req.Options,
	})
	result.Mutations = muts
	if err != nil {
		files, fragments := muts.Count()
		telemetry.FromContext(ctx).Warnf("install stopped after %d files and %d fragments; partial changes remain", files, fragments)
		return err
	}

	specJSON, err := json.Marshal(muts.Spec)
	if err != nil {
		return fmt.Errorf("failed to encode spec: %w", err)
	}
	mutsJSON, err := json.Marshal(muts)
	if err != nil {
		return fmt.Errorf("failed to encode mutations: %w", err)
	}

	inst := &stores.Installation{
		PluginID:    m.ID,
		Platform:    handler.Name(),
		ProjectPath: projectDir,
		PluginDir:   m.Dir,
		Version:     m.Version,
		WWWDir:      handler.WWWDir(projectDir, req.Options),
		Spec:        string(specJSON),
		Mutations:   string(mutsJSON),
	}
	if err := o.ledger.SaveInstallation(ctx, inst); err != nil {
		return NewTransientError("failed to record installation", err).
			WithCode(ErrCodeLedger).
			WithResource(m.ID).
			WithOperation(string(ActionInstall))
	}

	return nil
}

// checkPolicy runs the policy evaluator, if any, before the handler touches
// the project.
func (o *Orchestrator) checkPolicy(ctx context.Context, m *manifest.Manifest, platform, projectDir string, result *Result) error {
	if o.policies == nil {
		return nil
	}

	ctx, span := o.tracer.StartSpan(ctx, "plugin.policy")
	defer span.End()

	res, err := o.policies.Evaluate(ctx, policy.NewInput(string(ActionInstall), m, platform, projectDir, o.actor))
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("policy evaluation: %w", err)
	}

	logger := telemetry.FromContext(ctx)
	for _, w := range res.Warnings {
		logger.Warnf("policy %s", w)
		result.Warnings = append(result.Warnings, w.String())
	}
	if err := res.Err(); err != nil {
		o.metrics.RecordPolicyDenial(platform)
		telemetry.RecordError(span, err)
		return err
	}

	telemetry.RecordSuccess(span)
	return nil
}

func (o *Orchestrator) uninstall(ctx context.Context, handler platforms.Handler, projectDir string, req Request, result *Result) error {
	inst, err := o.findInstallation(ctx, handler.Name(), projectDir, req)
	if err != nil {
		return err
	}
	result.PluginID = inst.PluginID
	result.Version = inst.Version

	var spec manifest.PlatformSpec
	if err := json.Unmarshal([]byte(inst.Spec), &spec); err != nil {
		return NewPermanentError("corrupt ledger entry", err).
			WithCode(ErrCodeLedger).
			WithResource(inst.PluginID).
			WithOperation(string(ActionUninstall))
	}

	opts := req.Options
	if opts.WWWDir == "" {
		opts.WWWDir = inst.WWWDir
	}

	if err := handler.Uninstall(ctx, platforms.UninstallRequest{
		Spec:       &spec,
		PluginID:   inst.PluginID,
		PluginDir:  inst.PluginDir,
		ProjectDir: projectDir,
		Options:    opts,
	}); err != nil {
		return err
	}

	var muts platforms.Mutations
	if err := json.Unmarshal([]byte(inst.Mutations), &muts); err == nil {
		result.Mutations = &muts
	}

	if err := o.ledger.DeleteInstallation(ctx, inst.Key()); err != nil {
		return NewTransientError("failed to remove installation record", err).
			WithCode(ErrCodeLedger).
			WithResource(inst.PluginID).
			WithOperation(string(ActionUninstall))
	}

	return nil
}

// findInstallation looks the request up by the given id, then by the id
// declared in the plugin's manifest when the request named a directory.
func (o *Orchestrator) findInstallation(ctx context.Context, platform, projectDir string, req Request) (*stores.Installation, error) {
	key := stores.InstallationKey{PluginID: req.PluginID, Platform: platform, ProjectPath: projectDir}

	inst, err := o.ledger.GetInstallation(ctx, key)
	if err == nil {
		return inst, nil
	}
	if !errors.Is(err, stores.ErrNotFound) {
		return nil, NewTransientError("failed to read ledger", err).WithCode(ErrCodeLedger)
	}

	if req.PluginsDir != "" {
		if m, mErr := o.manifests.Find(req.PluginsDir, req.PluginID); mErr == nil && m.ID != req.PluginID {
			key.PluginID = m.ID
			inst, err = o.ledger.GetInstallation(ctx, key)
			if err == nil {
				return inst, nil
			}
			if !errors.Is(err, stores.ErrNotFound) {
				return nil, NewTransientError("failed to read ledger", err).WithCode(ErrCodeLedger)
			}
		}
	}

	return nil, fmt.Errorf("%w: %q for %s in %s", ErrNotInstalled, req.PluginID, platform, projectDir)
}

func (o *Orchestrator) loadManifest(pluginsDir, pluginID string) (*manifest.Manifest, error) {
	m, err := o.manifests.Find(pluginsDir, pluginID)
	if err == nil {
		return m, nil
	}
	if errors.Is(err, manifest.ErrPluginNotFound) {
		return nil, err
	}
	return nil, NewPermanentError("failed to load manifest", err).
		WithCode(ErrCodeManifest).
		WithResource(pluginID)
}

// Installed lists the ledger entries of a project.
func (o *Orchestrator) Installed(ctx context.Context, projectDir string) ([]*stores.Installation, error) {
	abs, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project path: %w", err)
	}

	list, err := o.ledger.ListInstallations(ctx, abs)
	if err != nil {
		return nil, NewTransientError("failed to list installations", err).WithCode(ErrCodeLedger)
	}

	counts := make(map[string]int)
	for _, inst := range list {
		counts[inst.Platform]++
	}
	for platform, n := range counts {
		o.metrics.SetInstalledPlugins(platform, n)
	}

	return list, nil
}

func (o *Orchestrator) lockProject(projectDir string) (func(), error) {
	o.mu.Lock()
	l, ok := o.locks[projectDir]
	if !ok {
		l = &sync.Mutex{}
		o.locks[projectDir] = l
	}
	o.mu.Unlock()

	l.Lock()
	if o.lockDir == "" {
		return l.Unlock, nil
	}

	release, err := fileops.LockFile(o.lockDir, projectLockName(projectDir))
	if err != nil {
		l.Unlock()
		return nil, NewTransientError("failed to lock project", err).WithCode(ErrCodeInternal)
	}
	return func() {
		if err := release(); err != nil {
			o.logger.WithError(err).Warn("failed to release project lock")
		}
		l.Unlock()
	}, nil
}

// projectLockName maps an absolute project path to a lock file name.
func projectLockName(projectDir string) string {
	sum := sha256.Sum256([]byte(projectDir))
	return hex.EncodeToString(sum[:8]) + ".lock"
}

func (o *Orchestrator) audit(ctx context.Context, opID string, result *Result, outcome string, cause error) {
	target := fmt.Sprintf("%s@%s:%s", result.PluginID, result.Platform, result.ProjectDir)

	files, fragments := result.Mutations.Count()
	details := map[string]interface{}{
		"operation_id": opID,
		"version":      result.Version,
		"files":        files,
		"fragments":    fragments,
		"duration_ms":  result.Duration.Milliseconds(),
	}
	if cause != nil {
		details["error"] = cause.Error()
		details["code"] = CodeOf(cause)
	}
	if traceID := telemetry.TraceID(ctx); traceID != "" {
		details["trace_id"] = traceID
	}

	var detailsJSON *string
	if data, err := json.Marshal(details); err == nil {
		s := string(data)
		detailsJSON = &s
	}

	entry := &stores.AuditEntry{
		Action:   string(result.Action),
		Actor:    o.actor,
		TargetID: &target,
		Details:  detailsJSON,
		Outcome:  outcome,
	}
	// The audit trail must not turn a finished operation into a failure.
	if err := o.ledger.CreateAuditEntry(context.WithoutCancel(ctx), entry); err != nil {
		o.logger.WithError(err).Warn("failed to write audit entry")
	}
}

func validateRequest(req Request) error {
	switch {
	case !req.Action.Valid():
		return fmt.Errorf("%w: unknown action %q", ErrInvalidRequest, req.Action)
	case req.Platform == "":
		return fmt.Errorf("%w: platform is required", ErrInvalidRequest)
	case req.ProjectDir == "":
		return fmt.Errorf("%w: project directory is required", ErrInvalidRequest)
	case req.PluginID == "":
		return fmt.Errorf("%w: plugin id is required", ErrInvalidRequest)
	case req.Action == ActionInstall && req.PluginsDir == "":
		return fmt.Errorf("%w: plugins directory is required for install", ErrInvalidRequest)
	}
	return nil
}
