package config

import (
	"testing"
	"time"
)

func TestStringFallsBackWhenUnset(t *testing.T) {
	t.Setenv("TIMELY_TEST_NAME", "  ")
	if got := String("TIMELY_TEST_NAME", "slots-service"); got != "slots-service" {
		t.Fatalf("expected fallback, got %q", got)
	}
	t.Setenv("TIMELY_TEST_NAME", "booking-service")
	if got := String("TIMELY_TEST_NAME", "slots-service"); got != "booking-service" {
		t.Fatalf("expected env value, got %q", got)
	}
}

func TestRequiredString(t *testing.T) {
	if _, err := RequiredString("TIMELY_TEST_MISSING"); err == nil {
		t.Fatal("expected error for missing key")
	}
	t.Setenv("TIMELY_TEST_DSN", "postgres://localhost/timely")
	got, err := RequiredString("TIMELY_TEST_DSN")
	if err != nil || got != "postgres://localhost/timely" {
		t.Fatalf("unexpected result %q, %v", got, err)
	}
}

func TestPort(t *testing.T) {
	if _, err := Port("TIMELY_TEST_PORT", "8082"); err != nil {
		t.Fatalf("fallback port rejected: %v", err)
	}
	t.Setenv("TIMELY_TEST_PORT", "70000")
	if _, err := Port("TIMELY_TEST_PORT", "8082"); err == nil {
		t.Fatal("expected out of range port to fail")
	}
}

func TestTypedHelpers(t *testing.T) {
	t.Setenv("TIMELY_TEST_INT", "25")
	t.Setenv("TIMELY_TEST_BAD_INT", "-3")
	t.Setenv("TIMELY_TEST_BOOL", "yes")
	t.Setenv("TIMELY_TEST_DUR", "1500ms")
	t.Setenv("TIMELY_TEST_SECS", "7")
	t.Setenv("TIMELY_TEST_LIST", "a:1, ,b:2")

	if got := Int("TIMELY_TEST_INT", 1); got != 25 {
		t.Fatalf("expected 25, got %d", got)
	}
	if got := Int("TIMELY_TEST_BAD_INT", 60); got != 60 {
		t.Fatalf("expected fallback 60, got %d", got)
	}
	if !Bool("TIMELY_TEST_BOOL", false) {
		t.Fatal("expected true")
	}
	if !Bool("TIMELY_TEST_UNSET_BOOL", true) {
		t.Fatal("expected fallback true")
	}
	if got := Duration("TIMELY_TEST_DUR", time.Second); got != 1500*time.Millisecond {
		t.Fatalf("expected 1.5s, got %s", got)
	}
	if got := Duration("TIMELY_TEST_SECS", time.Second); got != 7*time.Second {
		t.Fatalf("expected 7s, got %s", got)
	}
	list := List("TIMELY_TEST_LIST", "")
	if len(list) != 2 || list[0] != "a:1" || list[1] != "b:2" {
		t.Fatalf("unexpected list %v", list)
	}
}

func TestFloat(t *testing.T) {
	t.Setenv("TIMELY_TEST_RATIO", "0.25")
	t.Setenv("TIMELY_TEST_BAD_RATIO", "quarter")
	if got := Float("TIMELY_TEST_RATIO", 1); got != 0.25 {
		t.Fatalf("expected 0.25, got %v", got)
	}
	if got := Float("TIMELY_TEST_BAD_RATIO", 1); got != 1 {
		t.Fatalf("expected fallback, got %v", got)
	}
}
