package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"
)

// End-to-end smoke against a running API: issue a token for an admin,
// assign a role to a second user, verify the grant takes effect, revoke,
// and verify the permission disappears again.
func main() {
	base := os.Getenv("PLANHUB_API_ADDR")
	if base == "" {
		base = "http://localhost:8080"
	}
	client := &http.Client{Timeout: 5 * time.Second}

	adminToken := issueToken(client, base, "smoke-admin", "super_admin")
	userID := fmt.Sprintf("smoke-user-%d", time.Now().UnixNano())
	issueToken(client, base, userID, "")

	if hasPermission(client, base, adminToken, userID, "manage_sprint") {
		log.Fatalf("fresh user %s unexpectedly has manage_sprint", userID)
	}

	var assignment struct {
		ID string `json:"id"`
	}
	doJSON(client, base, adminToken, http.MethodPost, "/v1/authz/assignments", map[string]any{
		"user_id":     userID,
		"layer":       "team",
		"role":        "scrum_master",
		"resource_id": "team-smoke",
	}, http.StatusCreated, &assignment)
	if assignment.ID == "" {
		log.Fatal("assignment created without an id")
	}

	if !hasPermission(client, base, adminToken, userID, "manage_sprint") {
		log.Fatalf("user %s missing manage_sprint after assignment", userID)
	}

	doJSON(client, base, adminToken, http.MethodDelete, "/v1/authz/assignments/"+assignment.ID,
		nil, http.StatusOK, nil)

	if hasPermission(client, base, adminToken, userID, "manage_sprint") {
		log.Fatalf("user %s still has manage_sprint after revocation", userID)
	}

	fmt.Printf("✅ authz smoke test passed: user=%s assignment=%s\n", userID, assignment.ID)
}

func issueToken(client *http.Client, base, user, systemRole string) string {
	var resp struct {
		Token string `json:"token"`
	}
	doJSON(client, base, "", http.MethodPost, "/v1/auth/token", map[string]any{
		"user":        user,
		"system_role": systemRole,
	}, http.StatusOK, &resp)
	if resp.Token == "" {
		log.Fatalf("empty token for %s", user)
	}
	return resp.Token
}

func hasPermission(client *http.Client, base, token, userID, permission string) bool {
	var resp struct {
		Allowed bool `json:"allowed"`
	}
	doJSON(client, base, token, http.MethodPost, "/v1/authz/check", map[string]any{
		"user_id":    userID,
		"permission": permission,
	}, http.StatusOK, &resp)
	return resp.Allowed
}

func doJSON(client *http.Client, base, token, method, path string, body map[string]any, wantStatus int, out any) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			log.Fatalf("encode %s body: %v", path, err)
		}
	}
	req, err := http.NewRequest(method, base+path, &buf)
	if err != nil {
		log.Fatalf("build %s %s: %v", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		log.Fatalf("%s %s: status %d, want %d", method, path, resp.StatusCode, wantStatus)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			log.Fatalf("decode %s response: %v", path, err)
		}
	}
}
