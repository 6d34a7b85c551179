package main

import (
	"path/filepath"
	"testing"

	"github.com/thaakir07/voicehub/internal/store"
)

func cliDBSetup(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "voicehub.db")
	st, err := store.New(dbPath)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	st.Close()
	return dbPath
}

func TestRunCLIEmptyArgsReturnsFalse(t *testing.T) {
	if RunCLI(nil, "ignored.db") {
		t.Fatal("expected false for empty args")
	}
}

func TestRunCLIUnknownSubcommandReturnsFalse(t *testing.T) {
	if RunCLI([]string{"bogus"}, "ignored.db") {
		t.Fatal("expected false for unknown subcommand")
	}
}

func TestCLINamesListEmptyReturnsTrue(t *testing.T) {
	dbPath := cliDBSetup(t)
	if !cliNames([]string{"list"}, dbPath) {
		t.Fatal("expected true")
	}
}

func TestCLINamesReserveAndList(t *testing.T) {
	dbPath := cliDBSetup(t)
	if !cliNames([]string{"reserve", "Admin", "moderator"}, dbPath) {
		t.Fatal("expected true")
	}

	st, err := store.New(dbPath)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	defer st.Close()
	held, by, err := st.IsNameReserved("Admin")
	if err != nil || !held || by != "moderator" {
		t.Fatalf("IsNameReserved = (%v, %q, %v), want (true, moderator, nil)", held, by, err)
	}

	if !cliNames([]string{"release", "Admin"}, dbPath) {
		t.Fatal("expected true")
	}
	held, _, _ = st.IsNameReserved("Admin")
	if held {
		t.Fatal("expected name released")
	}
}

func TestCLISettingsSetAndList(t *testing.T) {
	dbPath := cliDBSetup(t)
	if !cliSettings([]string{"set", "foo", "bar"}, dbPath) {
		t.Fatal("expected true")
	}
	if !cliSettings([]string{"list"}, dbPath) {
		t.Fatal("expected true")
	}

	st, err := store.New(dbPath)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	defer st.Close()
	val, ok, err := st.GetSetting("foo")
	if err != nil || !ok || val != "bar" {
		t.Fatalf("GetSetting = (%q, %v, %v), want (bar, true, nil)", val, ok, err)
	}
}
