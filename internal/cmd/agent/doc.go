// Package agentrun exposes the shared Run entrypoint used by the CLI to
// start the relay: config, spool, transport, dispatcher, and the metrics
// endpoint, with lifecycle and shutdown handling.
//
// Example:
//
//	opts := agentrun.Options{ConfigPath: "relay.yaml", Simulate: true}
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = agentrun.Run(ctx, opts)
package agentrun
