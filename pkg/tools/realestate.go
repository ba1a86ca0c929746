package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/estateline/estateline/pkg/conversation"
)

// criteriaSchema mirrors conversation.SearchCriteria so the model fills
// in the same fields the session accumulates.
func criteriaSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"city": map[string]any{
				"type":        "string",
				"description": "City the user wants to live in",
			},
			"state": map[string]any{
				"type":        "string",
				"description": "Two letter state code",
			},
			"bedrooms": map[string]any{
				"type":        "integer",
				"description": "Number of bedrooms",
			},
			"bathrooms": map[string]any{
				"type":        "integer",
				"description": "Number of bathrooms",
			},
			"min_price": map[string]any{
				"type":        "integer",
				"description": "Minimum price in dollars",
			},
			"max_price": map[string]any{
				"type":        "integer",
				"description": "Maximum price in dollars",
			},
		},
	}
}

// ExtractCriteriaTool pulls the home-search criteria out of the
// conversation and persists them on the session.
type ExtractCriteriaTool struct{}

func NewExtractCriteriaTool() *ExtractCriteriaTool { return &ExtractCriteriaTool{} }

func (t *ExtractCriteriaTool) Name() string { return "extract_search_criteria" }

func (t *ExtractCriteriaTool) Description() string {
	return "Extract the home search criteria the user has mentioned so far and save them for this call."
}

func (t *ExtractCriteriaTool) Parameters() map[string]any { return criteriaSchema() }

func (t *ExtractCriteriaTool) Execute(ctx context.Context, args map[string]any) (*Result, error) {
	// Criteria are hardcoded for testing.
	city := "New York City"
	bedrooms := 3
	bathrooms := 2
	maxPrice := 500000

	criteria := &conversation.SearchCriteria{
		City:      &city,
		Bedrooms:  &bedrooms,
		Bathrooms: &bathrooms,
		MaxPrice:  &maxPrice,
	}

	return &Result{
		Content:  "process_criteria",
		Criteria: criteria,
	}, nil
}

// SearchTool looks up property listings for the given criteria.
type SearchTool struct{}

func NewSearchTool() *SearchTool { return &SearchTool{} }

func (t *SearchTool) Name() string { return "search_real_estate" }

func (t *SearchTool) Description() string {
	return "Search property listings matching the given criteria. Expand the bounds if a first search returns nothing."
}

func (t *SearchTool) Parameters() map[string]any { return criteriaSchema() }

func (t *SearchTool) Execute(ctx context.Context, args map[string]any) (*Result, error) {
	criteria := criteriaFromArgs(args)

	// Listing data is stubbed; a real backend would query the MLS here.
	listings := []string{
		"123 Maple Street, 3 bed 2 bath, listed at $475,000",
		"88 Harbor View Apt 12, 3 bed 2 bath, listed at $489,000",
		"47 Greene Lane, 3 bed 2.5 bath, listed at $499,500",
	}

	var sb strings.Builder
	if criteria.IsZero() {
		sb.WriteString("Found 3 listings:\n")
	} else {
		fmt.Fprintf(&sb, "Found 3 listings for %s:\n", criteria.String())
	}
	for _, l := range listings {
		sb.WriteString("- ")
		sb.WriteString(l)
		sb.WriteString("\n")
	}

	return &Result{Content: sb.String()}, nil
}

// criteriaFromArgs decodes the loosely typed argument map the model
// sends. Numbers arrive as float64 through JSON decoding.
func criteriaFromArgs(args map[string]any) conversation.SearchCriteria {
	var c conversation.SearchCriteria
	if s, ok := args["city"].(string); ok && s != "" {
		c.City = &s
	}
	if s, ok := args["state"].(string); ok && s != "" {
		c.State = &s
	}
	if n, ok := intArg(args, "bedrooms"); ok {
		c.Bedrooms = &n
	}
	if n, ok := intArg(args, "bathrooms"); ok {
		c.Bathrooms = &n
	}
	if n, ok := intArg(args, "min_price"); ok {
		c.MinPrice = &n
	}
	if n, ok := intArg(args, "max_price"); ok {
		c.MaxPrice = &n
	}
	return c
}

func intArg(args map[string]any, key string) (int, bool) {
	switch v := args[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}
