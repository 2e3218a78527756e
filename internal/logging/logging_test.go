package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestComponentTagsOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	defer Disable()

	log := Component("dispatcher")
	log.Debug().Msg("hello")

	out := buf.String()
	if !strings.Contains(out, `"component":"dispatcher"`) {
		t.Fatalf("expected component field, got %q", out)
	}
	if !strings.Contains(out, `"message":"hello"`) {
		t.Fatalf("expected message, got %q", out)
	}
}

func TestInitDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "bogus", Output: &buf})
	defer Disable()

	log := Component("x")
	log.Debug().Msg("hidden")
	log.Info().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug output should be filtered at info level: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("info output missing: %q", out)
	}
}
