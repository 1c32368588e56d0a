// Package ordersync implements order synchronization for marketplace shops
// and everything derived from it.
//
// A sync run pages through the orders updated in a time window, fetches
// their details in batches and, per order:
//
//  1. upserts the local order
//  2. writes the geographic projection of the recipient address
//  3. compares the address with the last snapshot and raises or reopens a
//     change alert when it really changed
//  4. evaluates the shipping deadline
//
// Runs are idempotent: syncing the same window twice produces no new
// snapshots or alerts. The package also serves the alert workflow
// (AlertService) and the geo sales report (GeoSalesService).
package ordersync
