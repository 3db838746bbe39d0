package shared_test

import (
	"testing"
	"time"

	"hotel_pricesheet/internal/shared"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OUTPUT_MODE", "")
	t.Setenv("SAVE_ATTEMPTS", "")
	c := shared.Load()
	if c.OutputMode != shared.OutputTimestamped {
		t.Fatalf("output mode = %q", c.OutputMode)
	}
	if c.SaveAttempts != 10 || c.SaveDelay != 5*time.Second {
		t.Fatalf("save policy = %d x %s", c.SaveAttempts, c.SaveDelay)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("OUTPUT_MODE", "InPlace")
	t.Setenv("SAVE_ATTEMPTS", "3")
	t.Setenv("SAVE_DELAY_SECONDS", "1")
	t.Setenv("UPDATE_MODE", "true")
	t.Setenv("WORKERS", "not-a-number")
	c := shared.Load()
	if c.OutputMode != shared.OutputInPlace {
		t.Fatalf("output mode = %q", c.OutputMode)
	}
	if c.SaveAttempts != 3 || c.SaveDelay != time.Second {
		t.Fatalf("save policy = %d x %s", c.SaveAttempts, c.SaveDelay)
	}
	if !c.UpdateMode {
		t.Fatalf("update mode not set")
	}
	if c.Workers != 4 {
		t.Fatalf("workers = %d, want default 4", c.Workers)
	}
}

func TestLoad_UnknownOutputMode(t *testing.T) {
	t.Setenv("OUTPUT_MODE", "sideways")
	if c := shared.Load(); c.OutputMode != shared.OutputTimestamped {
		t.Fatalf("output mode = %q", c.OutputMode)
	}
}
