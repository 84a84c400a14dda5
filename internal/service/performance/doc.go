// Package performance implements the import side of the optimization loop.
//
// It validates CSV rows of campaign metrics, streams uploads into storage
// while keeping a per-batch ledger of accepted and rejected rows, and
// aggregates the stored rows into per-angle metrics. It depends on the
// repository interfaces defined in this package and should never import
// from api/.
//
// Repository implementations live in repository/postgres/ and repository/memory/.
package performance
