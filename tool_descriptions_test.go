package tellerd

import (
	"strings"
	"testing"
)

func TestBuildToolDescriptionsCoverage(t *testing.T) {
	t.Parallel()

	descriptions := buildToolDescriptions()

	if len(descriptions) != len(toolNames) {
		t.Fatalf("expected %d tool descriptions, got %d", len(toolNames), len(descriptions))
	}
	for _, name := range toolNames {
		description, ok := descriptions[name]
		if !ok {
			t.Fatalf("missing description for %s", name)
		}
		if strings.TrimSpace(description) == "" {
			t.Fatalf("empty description for %s", name)
		}
	}
}

func TestResolveToolsDocumentWidgetOnlyReachability(t *testing.T) {
	t.Parallel()

	descriptions := buildToolDescriptions()
	for _, name := range []string{toolTransferResolve, toolPaymentResolve} {
		if !strings.Contains(descriptions[name], "widget") {
			t.Fatalf("description for %s should state it is widget-reachable only: %q", name, descriptions[name])
		}
	}
}
