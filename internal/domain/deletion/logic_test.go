package deletion

import (
	"strings"
	"testing"
	"time"
)

func TestCanTransitionAllowedEdges(t *testing.T) {
	allowed := [][2]string{
		{StatusPending, StatusConfirmed},
		{StatusPending, StatusCancelled},
		{StatusConfirmed, StatusCancelled},
		{StatusConfirmed, StatusCompleted},
	}
	for _, edge := range allowed {
		if !CanTransition(edge[0], edge[1]) {
			t.Fatalf("expected transition %s -> %s to be allowed", edge[0], edge[1])
		}
	}
}

func TestCanTransitionRejectsTerminalStates(t *testing.T) {
	for _, from := range []string{StatusCancelled, StatusCompleted} {
		for _, to := range []string{StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted} {
			if CanTransition(from, to) {
				t.Fatalf("terminal state %s must not transition to %s", from, to)
			}
		}
	}
}

func TestCanTransitionRejectsSkips(t *testing.T) {
	if CanTransition(StatusPending, StatusCompleted) {
		t.Fatal("pending must not jump straight to completed")
	}
	if CanTransition(StatusConfirmed, StatusPending) {
		t.Fatal("confirmed must not go back to pending")
	}
}

func TestIsTerminal(t *testing.T) {
	if IsTerminal(StatusPending) || IsTerminal(StatusConfirmed) {
		t.Fatal("pending and confirmed are not terminal")
	}
	if !IsTerminal(StatusCancelled) || !IsTerminal(StatusCompleted) {
		t.Fatal("cancelled and completed are terminal")
	}
}

func TestConfirmable(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if !Confirmable(StatusPending, now.Add(time.Hour), now) {
		t.Fatal("pending request inside the window must be confirmable")
	}
	if Confirmable(StatusPending, now.Add(-time.Second), now) {
		t.Fatal("expired request must not be confirmable")
	}
	if Confirmable(StatusConfirmed, now.Add(time.Hour), now) {
		t.Fatal("already-confirmed request must not be confirmable")
	}
	if Confirmable(StatusCancelled, now.Add(time.Hour), now) {
		t.Fatal("cancelled request must not be confirmable")
	}
}

func TestNewTokenUniqueAndURLSafe(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		token, err := NewToken()
		if err != nil {
			t.Fatalf("token error: %v", err)
		}
		if len(token) < 40 {
			t.Fatalf("token too short: %q", token)
		}
		if strings.ContainsAny(token, "+/=") {
			t.Fatalf("token not URL-safe: %q", token)
		}
		if seen[token] {
			t.Fatalf("duplicate token generated: %q", token)
		}
		seen[token] = true
	}
}

func TestActionLinks(t *testing.T) {
	confirm, cancel := ActionLinks("https://admin.example.com/", "u1", "tok123")

	if confirm != "https://admin.example.com/api/v1/admin/users/u1/delete-requests/confirm?token=tok123" {
		t.Fatalf("unexpected confirm link: %s", confirm)
	}
	if cancel != "https://admin.example.com/api/v1/admin/users/u1/delete-requests/cancel?token=tok123" {
		t.Fatalf("unexpected cancel link: %s", cancel)
	}
}
