// Package optimization closes the loop after metrics are imported.
//
// It ranks a campaign's angles by a chosen metric, flags the top ones as
// winners, and asks a content generator for new drafts that descend from
// those winners. Metrics come from the performance service; persistence
// goes through the repository interfaces defined here.
package optimization
