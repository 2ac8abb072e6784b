package db

import (
	"os"
	"testing"

	"github.com/dailyyoga/datakit/logger"
)

func newTestLogger(t *testing.T) logger.Logger {
	log, err := logger.New(&logger.Config{
		Level:    "debug",
		Encoding: "console",
	})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	return log
}

// TestStore_RoundTrip needs a reachable MySQL instance and is skipped unless
// DATAKIT_TEST_MYSQL_HOST is set.
func TestStore_RoundTrip(t *testing.T) {
	host := os.Getenv("DATAKIT_TEST_MYSQL_HOST")
	if host == "" {
		t.Skip("DATAKIT_TEST_MYSQL_HOST not set, skipping MySQL integration test")
	}

	log := newTestLogger(t)
	database, err := NewMySQL(log, &Config{
		Host:     host,
		User:     os.Getenv("DATAKIT_TEST_MYSQL_USER"),
		Password: os.Getenv("DATAKIT_TEST_MYSQL_PASSWORD"),
		Database: os.Getenv("DATAKIT_TEST_MYSQL_DATABASE"),
	})
	if err != nil {
		t.Fatalf("NewMySQL failed: %v", err)
	}
	defer database.Close()

	s, err := NewStore(log, database, "datakit_records_test")
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	type payload struct {
		Token string `json:"token"`
	}

	s.Set("Session.token", payload{Token: "abc123"})
	var out payload
	if !s.Get("Session.token", &out) || out.Token != "abc123" {
		t.Errorf("round trip mismatch: %+v", out)
	}

	s.Remove("Session.token")
	if s.Get("Session.token", &out) {
		t.Error("expected miss after Remove")
	}
}
