// Package integration contains the marketplace integration bounded context.
// It models orders pulled from an external marketplace and the address
// history kept for each of them.
//
// Key concepts:
//   - MarketplaceClient: Port interface for listing and fetching orders from the marketplace
//   - Order: Local copy of a marketplace order, upserted on every sync
//   - AddressSnapshot: Append-only record of one observed shipping address
//   - AddressChangeAlert: Detected transition between two snapshots of the same order
//   - GeoAddress: Best-known geographic projection of an order, used for reporting only
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration
