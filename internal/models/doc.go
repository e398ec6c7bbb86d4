// Package models defines the core domain records for fairkeep.
//
// # Records
//
//   - Expense: one spending event, with its per-user Splits and derived participants
//   - Split: one user's paid and owed amounts for one expense
//   - Activity: append-only audit entry with a denormalized expense snapshot
//   - ContactRequest: edge of the contact graph that scopes user visibility
//   - User: identity record owned by the auth layer
//
// # Conventions
//
//  1. Ids are UUID strings. Relationships are ids, never pointers.
//  2. Money is shopspring/decimal, quantized to cents before it is stored.
//  3. Timestamps are Unix seconds; calendar dates are "YYYY-MM-DD" strings.
//  4. Enumerations are closed string types with a Valid method.
package models
