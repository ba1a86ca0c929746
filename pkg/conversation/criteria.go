package conversation

import (
	"fmt"
	"strings"
)

// SearchCriteria captures what the caller is looking for. Every field is
// optional; nil means the caller has not specified it yet.
type SearchCriteria struct {
	City      *string `json:"city,omitempty"`
	State     *string `json:"state,omitempty"`
	Bedrooms  *int    `json:"bedrooms,omitempty"`
	Bathrooms *int    `json:"bathrooms,omitempty"`
	MinPrice  *int    `json:"min_price,omitempty"`
	MaxPrice  *int    `json:"max_price,omitempty"`
}

// Merge overlays patch onto c. Only fields set in the patch overwrite;
// fields the patch leaves nil keep their current value. When both sides
// set a field the patch wins.
func (c *SearchCriteria) Merge(patch *SearchCriteria) {
	if patch == nil {
		return
	}
	if patch.City != nil {
		c.City = patch.City
	}
	if patch.State != nil {
		c.State = patch.State
	}
	if patch.Bedrooms != nil {
		c.Bedrooms = patch.Bedrooms
	}
	if patch.Bathrooms != nil {
		c.Bathrooms = patch.Bathrooms
	}
	if patch.MinPrice != nil {
		c.MinPrice = patch.MinPrice
	}
	if patch.MaxPrice != nil {
		c.MaxPrice = patch.MaxPrice
	}
}

// IsZero reports whether no field has been set.
func (c *SearchCriteria) IsZero() bool {
	return c.City == nil && c.State == nil && c.Bedrooms == nil &&
		c.Bathrooms == nil && c.MinPrice == nil && c.MaxPrice == nil
}

// String renders the set fields for prompt injection and logging,
// e.g. {city: New York City, bedrooms: 3, max_price: 500000}.
func (c *SearchCriteria) String() string {
	var parts []string
	if c.City != nil {
		parts = append(parts, fmt.Sprintf("city: %s", *c.City))
	}
	if c.State != nil {
		parts = append(parts, fmt.Sprintf("state: %s", *c.State))
	}
	if c.Bedrooms != nil {
		parts = append(parts, fmt.Sprintf("bedrooms: %d", *c.Bedrooms))
	}
	if c.Bathrooms != nil {
		parts = append(parts, fmt.Sprintf("bathrooms: %d", *c.Bathrooms))
	}
	if c.MinPrice != nil {
		parts = append(parts, fmt.Sprintf("min_price: %d", *c.MinPrice))
	}
	if c.MaxPrice != nil {
		parts = append(parts, fmt.Sprintf("max_price: %d", *c.MaxPrice))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
