package conversation

import (
	"fmt"
	"sync"
	"testing"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestCriteriaMergeLastNonNilWins(t *testing.T) {
	var c SearchCriteria

	c.Merge(&SearchCriteria{City: strPtr("Boston"), Bedrooms: intPtr(2)})
	c.Merge(&SearchCriteria{City: strPtr("New York City"), MaxPrice: intPtr(500000)})
	c.Merge(&SearchCriteria{Bathrooms: intPtr(2)})
	c.Merge(nil)

	if c.City == nil || *c.City != "New York City" {
		t.Errorf("city = %v, want the later value to win", c.City)
	}
	if c.Bedrooms == nil || *c.Bedrooms != 2 {
		t.Errorf("bedrooms = %v, want the earlier value to survive", c.Bedrooms)
	}
	if c.Bathrooms == nil || *c.Bathrooms != 2 {
		t.Errorf("bathrooms = %v", c.Bathrooms)
	}
	if c.MaxPrice == nil || *c.MaxPrice != 500000 {
		t.Errorf("max_price = %v", c.MaxPrice)
	}
	if c.State != nil || c.MinPrice != nil {
		t.Error("never-set fields must remain nil")
	}
}

func TestCriteriaMergeDoesNotClear(t *testing.T) {
	c := SearchCriteria{City: strPtr("Austin"), Bedrooms: intPtr(4)}

	c.Merge(&SearchCriteria{MaxPrice: intPtr(750000)})

	if c.City == nil || *c.City != "Austin" {
		t.Error("nil patch field must not clear an existing value")
	}
	if c.Bedrooms == nil || *c.Bedrooms != 4 {
		t.Error("nil patch field must not clear an existing value")
	}
}

func TestCriteriaIsZero(t *testing.T) {
	var c SearchCriteria
	if !c.IsZero() {
		t.Error("empty criteria should be zero")
	}
	c.Bedrooms = intPtr(1)
	if c.IsZero() {
		t.Error("criteria with a field should not be zero")
	}
}

func TestCriteriaString(t *testing.T) {
	c := SearchCriteria{
		City:      strPtr("New York City"),
		Bedrooms:  intPtr(3),
		Bathrooms: intPtr(2),
		MaxPrice:  intPtr(500000),
	}
	want := "{city: New York City, bedrooms: 3, bathrooms: 2, max_price: 500000}"
	if got := c.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	var empty SearchCriteria
	if got := empty.String(); got != "{}" {
		t.Errorf("empty String() = %q, want {}", got)
	}
}

func TestStateTranscriptReplacement(t *testing.T) {
	s := NewState("call_1")

	first := []Message{{Role: RoleUser, Content: "hello"}}
	s.SetTranscript(first)

	second := []Message{
		{Role: RoleUser, Content: "hello"},
		{Role: RoleAgent, Content: "hi there"},
		{Role: RoleUser, Content: "show me homes"},
	}
	s.SetTranscript(second)

	if s.Len() != 3 {
		t.Errorf("Len() = %d, want 3 (replacement, not append)", s.Len())
	}

	// A snapshot handed in and then mutated must not leak into state.
	second[0].Content = "mutated"
	if s.Transcript()[0].Content != "hello" {
		t.Error("SetTranscript must copy its input")
	}

	// Same for the snapshot handed out.
	out := s.Transcript()
	out[1].Content = "mutated"
	if s.Transcript()[1].Content != "hi there" {
		t.Error("Transcript must return a copy")
	}
}

func TestStateLastUserMessage(t *testing.T) {
	s := NewState("call_1")
	if got := s.LastUserMessage(); got != "" {
		t.Errorf("empty transcript LastUserMessage = %q", got)
	}

	s.SetTranscript([]Message{
		{Role: RoleUser, Content: "first"},
		{Role: RoleAgent, Content: "reply"},
		{Role: RoleUser, Content: "second"},
		{Role: RoleAgent, Content: "another reply"},
	})
	if got := s.LastUserMessage(); got != "second" {
		t.Errorf("LastUserMessage = %q, want %q", got, "second")
	}
}

func TestStateApplyCriteria(t *testing.T) {
	s := NewState("call_1")

	s.ApplyCriteria(&SearchCriteria{City: strPtr("Denver")})
	s.ApplyCriteria(&SearchCriteria{City: strPtr("New York City"), Bedrooms: intPtr(3)})
	s.ApplyCriteria(nil)

	c := s.Criteria()
	if c.City == nil || *c.City != "New York City" {
		t.Errorf("city = %v", c.City)
	}
	if c.Bedrooms == nil || *c.Bedrooms != 3 {
		t.Errorf("bedrooms = %v", c.Bedrooms)
	}
}

func TestStateCallInfo(t *testing.T) {
	s := NewState("call_42")
	if s.CallID() != "call_42" {
		t.Errorf("CallID = %q", s.CallID())
	}

	s.SetCallInfo("+14155550100", "+14155550199")
	from, to := s.CallInfo()
	if from != "+14155550100" || to != "+14155550199" {
		t.Errorf("CallInfo = (%q, %q)", from, to)
	}
}

func TestStateConcurrentAccess(t *testing.T) {
	s := NewState("call_1")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			s.SetTranscript([]Message{{Role: RoleUser, Content: fmt.Sprintf("msg %d", n)}})
		}(i)
		go func(n int) {
			defer wg.Done()
			s.ApplyCriteria(&SearchCriteria{Bedrooms: intPtr(n)})
			_ = s.Transcript()
			_ = s.Criteria()
		}(i)
	}
	wg.Wait()

	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1 after replacements", s.Len())
	}
	if s.Criteria().Bedrooms == nil {
		t.Error("criteria should have a bedrooms value")
	}
}
