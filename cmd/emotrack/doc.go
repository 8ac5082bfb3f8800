// Package main hosts the emotrack CLI entrypoint and command graph.
//
// The Cobra command tree runs the daemon in the foreground or detached,
// controls it through its pid file, and talks to the running daemon over its
// HTTP API for uploads, session inspection, analysis history, and log
// streaming. Configuration is resolved once per invocation by commandContext;
// commands annotated with skipConfigLoad resolve it themselves.
package main
