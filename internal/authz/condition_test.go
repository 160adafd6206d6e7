package authz

import "testing"

func TestOwnOnlySatisfied(t *testing.T) {
	cond := OwnOnly{Field: "assignee"}
	res := Resource{"assignee": "user-99", "title": "fix login"}

	if !satisfied(cond, "user-99", res, nil) {
		t.Fatalf("owner should satisfy own_only")
	}
	if satisfied(cond, "user-100", res, nil) {
		t.Fatalf("non-owner should not satisfy own_only")
	}
	if satisfied(cond, "user-99", nil, nil) {
		t.Fatalf("missing resource should fail closed")
	}
	if satisfied(cond, "user-99", Resource{"title": "x"}, nil) {
		t.Fatalf("missing field should fail closed")
	}
	if satisfied(cond, "user-99", Resource{"assignee": 99}, nil) {
		t.Fatalf("mismatched numeric field should fail closed")
	}
	if satisfied(cond, "user-99", Resource{"assignee": nil}, nil) {
		t.Fatalf("nil field should fail closed")
	}
}

func TestOwnOnlyMatchesDecodedNumericIDs(t *testing.T) {
	cond := OwnOnly{Field: "assignee"}

	// json.Unmarshal into map[string]any yields float64 for numbers; a
	// numeric assignee must still match the same id in string form.
	if !satisfied(cond, "42", Resource{"assignee": float64(42)}, nil) {
		t.Fatalf("decoded numeric owner id should satisfy own_only")
	}
	if !satisfied(cond, "42", Resource{"assignee": 42}, nil) {
		t.Fatalf("integer owner id should satisfy own_only")
	}
	if satisfied(cond, "43", Resource{"assignee": float64(42)}, nil) {
		t.Fatalf("different numeric id should not satisfy own_only")
	}
}

func TestFieldScopeSatisfied(t *testing.T) {
	cond := FieldScope{Allowed: []string{"test_status", "qa_notes"}}

	if !satisfied(cond, "u", nil, []string{"test_status"}) {
		t.Fatalf("allowed field should satisfy field_scope")
	}
	if !satisfied(cond, "u", nil, []string{"test_status", "qa_notes"}) {
		t.Fatalf("all-allowed fields should satisfy field_scope")
	}
	if satisfied(cond, "u", nil, []string{"test_status", "title"}) {
		t.Fatalf("one out-of-scope field should fail the whole edit")
	}
	if satisfied(cond, "u", nil, nil) {
		t.Fatalf("no declared fields should fail closed")
	}
	if !satisfied(cond, "u", nil, []string{"Test_Status"}) {
		t.Fatalf("field comparison should be case-insensitive")
	}
}

func TestUnknownConditionFailsClosed(t *testing.T) {
	if satisfied(nil, "u", Resource{"assignee": "u"}, []string{"title"}) {
		t.Fatalf("nil condition should not satisfy the conditional path")
	}
}
