// Package repositories implements persistence for the storefront.
//
// Two backends are used:
//   - SQLite (device-local): [LocalCacheRepository] for the cart mirror and purchased marker,
//     [SessionRepository] for the persisted sign-in, [MovieCacheRepository] for catalog details.
//   - Firestore (remote): [ProfileRepositoryFS] for the per-user profile document, including the
//     purchase history and the server-side cart mirror.
//
// Firestore documents are decoded by hand from snapshot data so older documents with
// single-movie purchases and newer ones with batch purchases both load.
package repositories
