// Package services implements the external collaborators of the storefront.
//
// # Catalog
//
// [TMDBService] implements [Catalog] against The Movie Database v3 API. Requests
// carry the api_key query parameter and are paced by a token-bucket limiter.
// [CachedCatalog] keeps movie detail records in the local SQLite cache.
//
// # Identity
//
// [FirebaseIdentity] implements [Identity] over the Identity Toolkit REST API.
// Provider failures come back as *[AuthError] whose Code is one of the auth/...
// constants, and [AuthMessage] turns them into the text shown to users:
//   - [CodeInvalidCredential]: wrong e-mail or password
//   - [CodeTooManyRequests]: provider throttling
//   - [CodePopupClosed]: federated sign-in abandoned in the browser
//   - [CodeEmailInUse], [CodeWeakPassword]: sign-up validation
//
// [TokenVerifier] checks restored id tokens with the Firebase Admin SDK.
//
// # Google Cloud
//
// [NewFirestoreClient], [NewStorageClient], [NewSecretManagerClient] and
// [NewFirebaseApp] share [ClientOptions]. [ResolveTMDBKey] reads the catalog key
// from Secret Manager, [ReceiptMailer] sends purchase receipts through SendGrid
// and [GCSUploader] archives library exports.
package services
