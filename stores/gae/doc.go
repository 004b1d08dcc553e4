//go:build !wasm
// +build !wasm

// Package gae stores accounts in Google Cloud Datastore. It is designed for
// deployment on Google Cloud Platform and supports multi-tenancy through
// Datastore namespaces.
//
// # Datastore Kinds
//
//   - Account: one entity per account, keyed by account ID
//   - Username: reservation entity keyed by the exact username, holding the
//     owning account ID
//
// CreateAccount writes both entities in one transaction, so two concurrent
// registrations for the same username cannot both succeed.
//
// # Usage
//
//	client, _ := datastore.NewClient(ctx, projectID)
//	store := gae.NewAccountStore(client, "") // default namespace
//
// Email lookups return the oldest match and need the composite index in
// index.yaml (deploy it with gcloud datastore indexes create index.yaml).
package gae
