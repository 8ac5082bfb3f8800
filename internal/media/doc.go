// Package media persists analysis artifacts beneath a single storage root:
// raw uploads, per-analysis snapshots, per-session emotion snapshots, and
// session video streams.
//
// Every path handed back to callers is relative to the root and uses forward
// slashes, so the HTTP layer can turn it into a servable URL. Resolve is the
// only way back to an absolute path and rejects anything escaping the root.
package media
