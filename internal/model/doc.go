// Package model defines shared data types used across the updown server.
//
// Conventions:
//   - Money and prices: decimal.Decimal internally, JSON numbers on the wire
//   - Prices are rounded to 2 decimal places
//   - Wire timestamps: int64 milliseconds since Unix epoch
//   - IDs: uuid strings for sessions and wagers, config names for markets
package model
