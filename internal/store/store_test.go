package store

import "testing"

func newMemStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMigrationsApplied(t *testing.T) {
	s := newMemStore(t)

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&count); err != nil {
		t.Fatalf("query schema_migrations: %v", err)
	}
	if count != len(migrations) {
		t.Errorf("expected %d migrations recorded, got %d", len(migrations), count)
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	s := newMemStore(t)

	if err := s.migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&count); err != nil {
		t.Fatalf("query: %v", err)
	}
	if count != len(migrations) {
		t.Errorf("expected %d rows after second migrate, got %d", len(migrations), count)
	}
}

func TestGetSetSetting(t *testing.T) {
	s := newMemStore(t)

	if _, ok, err := s.GetSetting("missing"); err != nil || ok {
		t.Fatalf("GetSetting(missing) = (_, %v, %v), want (_, false, nil)", ok, err)
	}

	if err := s.SetSetting("server_name", "voicehub"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	val, ok, err := s.GetSetting("server_name")
	if err != nil || !ok || val != "voicehub" {
		t.Fatalf("GetSetting = (%q, %v, %v), want (voicehub, true, nil)", val, ok, err)
	}

	if err := s.SetSetting("server_name", "renamed"); err != nil {
		t.Fatalf("SetSetting update: %v", err)
	}
	val, _, _ = s.GetSetting("server_name")
	if val != "renamed" {
		t.Fatalf("GetSetting after update = %q, want renamed", val)
	}

	all, err := s.GetAllSettings()
	if err != nil {
		t.Fatalf("GetAllSettings: %v", err)
	}
	if all["server_name"] != "renamed" {
		t.Fatalf("GetAllSettings = %+v, want server_name=renamed", all)
	}
}

func TestReserveNameRejectsCollision(t *testing.T) {
	s := newMemStore(t)

	ok, err := s.ReserveName("Alice", "10.0.0.1")
	if err != nil || !ok {
		t.Fatalf("first ReserveName = (%v, %v), want (true, nil)", ok, err)
	}
	ok, err = s.ReserveName("Alice", "10.0.0.2")
	if err != nil || ok {
		t.Fatalf("second ReserveName = (%v, %v), want (false, nil)", ok, err)
	}

	held, by, err := s.IsNameReserved("Alice")
	if err != nil || !held || by != "10.0.0.1" {
		t.Fatalf("IsNameReserved = (%v, %q, %v), want (true, 10.0.0.1, nil)", held, by, err)
	}

	if err := s.ReleaseName("Alice"); err != nil {
		t.Fatalf("ReleaseName: %v", err)
	}
	held, _, _ = s.IsNameReserved("Alice")
	if held {
		t.Fatal("expected name to be free after ReleaseName")
	}
}

func TestGetReservedNames(t *testing.T) {
	s := newMemStore(t)

	if _, err := s.ReserveName("Alice", "mod"); err != nil {
		t.Fatalf("ReserveName: %v", err)
	}
	if _, err := s.ReserveName("Bob", "mod"); err != nil {
		t.Fatalf("ReserveName: %v", err)
	}

	names, err := s.GetReservedNames()
	if err != nil {
		t.Fatalf("GetReservedNames: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("GetReservedNames = %+v, want 2 entries", names)
	}
}

func TestAuditLogInsertAndQuery(t *testing.T) {
	s := newMemStore(t)

	if err := s.InsertAuditLog("connect", "Alice", ""); err != nil {
		t.Fatalf("InsertAuditLog: %v", err)
	}
	if err := s.InsertAuditLog("call_start", "Alice", "target=Bob"); err != nil {
		t.Fatalf("InsertAuditLog: %v", err)
	}

	n, err := s.AuditLogCount()
	if err != nil || n != 2 {
		t.Fatalf("AuditLogCount = (%d, %v), want (2, nil)", n, err)
	}

	entries, err := s.GetAuditLog("call_start", 10)
	if err != nil {
		t.Fatalf("GetAuditLog: %v", err)
	}
	if len(entries) != 1 || entries[0].Detail != "target=Bob" {
		t.Fatalf("GetAuditLog filtered = %+v, want one call_start entry", entries)
	}

	all, err := s.GetAuditLog("", 10)
	if err != nil || len(all) != 2 {
		t.Fatalf("GetAuditLog unfiltered = (%d, %v), want (2, nil)", len(all), err)
	}
}
