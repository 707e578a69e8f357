// Package hopon is the Go client SDK for the HopOn pickup-sports backend.
// It owns the authentication session lifecycle for a client process and the
// HTTP collaborator every other call flows through.
//
// Session lifecycle:
//   - SessionManager is the single source of truth for "who is the current
//     actor". It starts in StatusLoading, resolves to StatusAuthenticated via
//     a session probe, a credential login, or a completed Google handshake,
//     and falls back to StatusGuest on any passive failure so callers never
//     hang on an unresolved session.
//   - The access token lives only in memory. Guest identity (display name and
//     per-event join tokens) is durable: it survives restarts and logout via
//     a pluggable Store (in-memory, Bun/sqlite, or sealed-at-rest).
//
// Unauthorized recovery:
//   - Client invokes the manager's unauthorized handler on any 401 and, only
//     when the silent refresh succeeds, retries the original request exactly
//     once with the fresh token. A failed refresh demotes the session to
//     guest and the original request surfaces as the failure.
//
// Google handshake:
//   - LoginWithGoogle opens the backend's OAuth entry URL through a Launcher
//     and waits for either an AuthMessage from the completion callback or the
//     window closing, with a durable storage fallback for environments where
//     the message channel never delivers. One attempt may be in flight at a
//     time.
package hopon
