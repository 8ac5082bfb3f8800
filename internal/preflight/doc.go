// Package preflight provides readiness checks for the filesystem paths, model
// artifacts, and network endpoints that emotrack depends on.
//
// These checks run in two contexts:
//   - The CLI "emotrack preflight" command calls RunAll before the daemon is
//     started and renders the results as a table.
//   - The CLI "emotrack status" command uses CheckDaemonFromConfig to report
//     whether a daemon is answering on the configured address.
package preflight
