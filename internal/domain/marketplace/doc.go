// Package marketplace contains the Marketplace Sync bounded context.
// It models the seller catalog pulled from two eMAG marketplace accounts and the
// rules used to reconcile stock between them.
//
// Key concepts:
//   - ProductRecord: local copy of one listing, unique per (SKU, Account)
//   - CatalogItem: one decoded item from a marketplace catalog page
//   - ShouldOverwrite: conflict resolution between a stored record and an incoming item
//   - SyncRun: lifecycle record of one synchronization invocation
//   - Analyze / SuggestTransfer: stock distribution rules across MAIN and FBE
//   - PNKConsistencyFact, CompetitionSnapshot: relationship facts used by the analyzer
//
// Design Pattern: Ports & Adapters
//   - CatalogClient and the repositories are ports defined here
//   - Adapters live in infrastructure/emag and infrastructure/persistence
package marketplace
