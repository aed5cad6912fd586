//go:build integration

package test

import (
	"context"
	"testing"
)

// Payloads another program (or an attacker with storage access) might leave
// under the engine's keys. None of them may panic a check or grant a
// lockout; they all read as the safe default.
func TestCorruptStoredStateReadsAsSafeDefault(t *testing.T) {
	mr, connect := newSharedRedis(t)
	defer mr.Close()

	client := connect(t)
	engine := newContextEngine(t, client)
	ctx := context.Background()

	payloads := map[string]string{
		"truncated":       `{"failedAttempts": 3, "lastAtt`,
		"not-json":        "definitely not json",
		"negative-count":  `{"failedAttempts": -7, "createdAt": 1, "updatedAt": 1, "version": 1}`,
		"string-count":    `{"failedAttempts": "many", "createdAt": 1, "updatedAt": 1, "version": 1}`,
		"wrong-version":   `{"failedAttempts": 3, "createdAt": 1, "updatedAt": 1, "version": 99}`,
		"absurd-count":    `{"failedAttempts": 3, "lockoutUntil": -1, "createdAt": 1, "updatedAt": 1, "version": 1}`,
		"empty":           "",
		"fake-lockout":    `{"failedAttempts": 99, "lockoutUntil": 9999999999999, "createdAt": 0, "updatedAt": 0, "version": 1}`,
	}

	for name, payload := range payloads {
		identifier := name + "@example.com"
		if err := client.Set(ctx, "lg:"+identifier, payload, 0).Err(); err != nil {
			t.Fatalf("seed failed: %v", err)
		}

		status := engine.CheckRateLimit(ctx, identifier)
		if status.IsLocked || !status.CanAttempt || status.AttemptsRemaining != 5 {
			t.Fatalf("%s: corrupt payload must read as the safe default, got %+v", name, status)
		}
	}
}
