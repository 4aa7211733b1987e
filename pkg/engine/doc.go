// Package engine drives plugin installation and removal for plugman.
//
// # Overview
//
// An Orchestrator receives one Request at a time per project and carries it
// through the following steps:
//
//  1. Resolve - Look up the platform handler in the registry
//  2. Lock - Take the project's exclusive lock
//  3. Load - Find the plugin manifest and select its platform entries
//  4. Check - Evaluate the install policies, if a PolicyEvaluator is set
//  5. Mutate - Run the handler's Install or Uninstall
//  6. Record - Update the ledger and append an audit entry
//  7. Notify - Call Request.OnComplete with the outcome
//
// Uninstall does not read the manifest again. It replays the platform entries
// stored in the ledger when the plugin was installed, so a plugin removed from
// the plugins directory can still be uninstalled.
//
// # Failure Model
//
// Mutations are not transactional. When a handler fails part way, the changes
// it already made stay in the project and the ledger is left untouched. The
// returned Result still lists the mutations that were applied.
//
// Errors are classified for callers:
//
//   - Transient: Ledger failures and cancelled contexts
//   - Conflict: A copy target already exists
//   - Permanent: Missing sources, unknown platforms, missing anchors, bad
//     manifests, policy denials
//
// Every returned error is an *EngineError carrying a code such as
// ErrCodeSourceNotFound, and wraps the sentinel it was built from:
//
//	if errors.Is(err, engine.ErrTargetAlreadyExists) {
//	    // Another plugin owns that file
//	}
//
// # Drift
//
// Verify re-reads the ledger and checks that every recorded file, asset and
// XML fragment is still present in the project.
//
// # Example Usage
//
//	orch := engine.NewOrchestrator(platforms.Default(), manifest.NewLoader(), store,
//	    engine.WithLogger(logger))
//
//	result, err := orch.HandlePlugin(ctx, engine.Request{
//	    Action:     engine.ActionInstall,
//	    Platform:   "android",
//	    ProjectDir: "/work/app/platforms/android",
//	    PluginID:   "org.acme.echo",
//	    PluginsDir: "/work/plugins",
//	})
package engine
