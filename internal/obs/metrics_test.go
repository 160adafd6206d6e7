package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"/healthz", "/healthz"},
		{"/v1/authz/check", "/v1/authz/check"},
		{"/v1/authz/users/user-42/permissions", "/v1/authz/users/:id/permissions"},
		{"/v1/authz/assignments/01J9XYZ", "/v1/authz/assignments/:id"},
		{"/v1/authz/assignments", "/v1/authz/assignments"},
		{"/v1/authz/check?user=abc", "/v1/authz/check"},
		{"", "/"},
	}
	for _, tc := range cases {
		if got := CanonicalPath(tc.in); got != tc.want {
			t.Fatalf("CanonicalPath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
