// Package types defines the player entity view, the attribute key space,
// the domain sub-entity records and the standard errors for the playerdb
// storage layer.
//
// Callers hold a Store (see store.go) and read or write players through the
// attribute contract: GetEntity returns a merged Entity map and SetAttribute
// routes a single key to its physical home according to AttributeKind.
package types
