// Package accounts provides a local-credential authentication and
// user-account core: credential verification, persist-code sessions with
// optional remember-me cookies, login-attempt throttling, and the account
// lifecycle from registration through activation, password reset, and
// soft deletion.
//
// Authentication:
//   - Manager composes the credential matcher, throttle guard, and session
//     manager behind a single Authenticate/Register/Logout contract. Expected
//     conditions (bad input, wrong password, inactive account, lockout) never
//     escape as errors; they resolve to a Result carrying a field tag and a
//     user-facing message. Unexpected persistence faults surface on
//     Result.Err and are never retried here.
//
// Persistence:
//   - Users, Throttles, and Groups are Bun repositories exposed through a
//     RepositoryManager. Deleting a user anonymizes the email and soft
//     deletes the row so referential history survives. Throttle counters are
//     incremented atomically in SQL so concurrent failures are never
//     undercounted.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by the Manager and
//     the lifecycle commands to describe login, registration, activation, and
//     password reset events. Sinks run best-effort (errors are logged) so you
//     can forward to a database or queue without blocking authentication.
package accounts
