// Package provider defines the boundary between the cache and the backend.
//
// A DataProvider turns (verb, resource, params) into a Response holding
// "data" and, for list verbs, "total". An AuthProvider is consulted on fetch
// failures and auth checks; its rejection forces a logout.
//
// Validate enforces the response contract before anything reaches the
// cache. A contract violation is a *ContractError and takes the same
// failure path as a transport error.
package provider
