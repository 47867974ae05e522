// Package auth manages the signed-in identity.
//
// [Manager] wraps the identity provider: it creates accounts together with their
// remote profile, signs in with a password or through Google, persists the session
// locally so a later process can [Manager.Restore] it, and publishes every change
// of identity to subscribers. A nil identity means signed out.
package auth
