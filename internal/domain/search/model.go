// Package search runs the cross-entity search over surgeons and products and
// keeps the workspace's recent-search list.
package search

import (
	"github.com/repcompanion/repcompanion/pkg/models"
)

const (
	// KeyRecentSearches holds the JSON array of recent queries, newest first.
	KeyRecentSearches = "recent-searches"

	MaxRecentSearches = 8
)

// SurgeonResult is a matched doctor with the names of their hospitals.
type SurgeonResult struct {
	*models.Doctor
	HospitalNames []string `json:"hospitalNames"`
}

// Results is the response of one search. Recent is only filled for an empty
// query.
type Results struct {
	Query    string            `json:"query"`
	Surgeons []SurgeonResult   `json:"surgeons"`
	Products []*models.Product `json:"products"`
	Recent   []string          `json:"recent,omitempty"`
}
