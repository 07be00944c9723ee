// Package catalog serves the read-only product catalogue.
package catalog

import (
	"errors"

	"github.com/repcompanion/repcompanion/pkg/models"
)

var ErrNotFound = errors.New("product not found")

// ProductFilter selects products. Query is a case-insensitive substring of
// name, description or category; Category is exact.
type ProductFilter struct {
	Query    string
	Category string
}

// CategoryCount is one entry of the category chip bar.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// CategoryGroup holds the products of one category.
type CategoryGroup struct {
	Category string            `json:"category"`
	Products []*models.Product `json:"products"`
}

// GroupByCategory groups products by category. Groups appear in the order
// their category is first seen; products keep their relative order.
func GroupByCategory(products []*models.Product) []CategoryGroup {
	groups := []CategoryGroup{}
	index := map[string]int{}
	for _, p := range products {
		i, ok := index[p.Category]
		if !ok {
			i = len(groups)
			index[p.Category] = i
			groups = append(groups, CategoryGroup{Category: p.Category})
		}
		groups[i].Products = append(groups[i].Products, p)
	}
	return groups
}
