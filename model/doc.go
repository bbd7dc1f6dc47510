// Package model defines the shared domain types: compound identifiers,
// annotation records (Hits), unit specifications, and run statistics.
//
// The package has no dependencies on the rest of the module so every other
// package can import it.
package model
