// Package store declares the persistence contracts for task progress. Implementations
// live in the storage packages.
package store
