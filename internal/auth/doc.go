// Package auth provides password authentication and per-request session state for labmap.
//
// # Credential Verification
//
// A Verifier checks an identifier (email or username) and a password against the
// user directory:
//
//	v := auth.NewVerifier(store, logger)
//	res := v.Verify(ctx, "alice@example.com", "secret")
//	if !res.OK {
//	    // generic "incorrect credentials" message
//	}
//
// Verification fails closed. Lookup errors, unknown identifiers, accounts without a
// password hash and wrong passwords all produce the zero Result. A dummy bcrypt
// comparison runs for unknown identifiers so timing does not reveal which exist.
//
// # Sessions
//
// Session is a plain value describing who is logged in. The web layer builds one per
// request from the session cookie and attaches it to the request context:
//
//	ctx = auth.WithSession(ctx, sess)
//	sess := auth.SessionFromContext(ctx)
//	if err := sess.Authorize(auth.RoleAdmin); err != nil { ... }
//
// Authorize checks authentication first (ErrNotAuthenticated) and then the role
// (ErrForbidden).
//
// # Roles
//
//   - "user": may upload, map and export files
//   - "admin": additionally manages user accounts
package auth
