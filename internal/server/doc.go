// Package server runs the local HTTP callback used by federated sign-in.
//
// [Listen] binds the configured address before the browser is opened, so the
// redirect cannot race the server start. [OAuthHandler] validates the state
// parameter, exchanges the authorization code through an [Exchanger] and
// delivers a single [OAuthResult]; replays are rejected.
//
// [BasicRouter] registers handlers on an [http.ServeMux] behind a [Middleware]
// stack. [Logging] and [Recover] are the stock middleware.
package server
