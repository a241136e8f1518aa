package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAuditConsumerAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "handoff.log")
	a := NewAuditConsumer("", path, nil)

	for i, name := range []string{"Aiko", "Ben"} {
		body, err := json.Marshal(KitchenHandoffEvent{
			OrderNumber:        "ORD_20260301_00" + string(rune('1'+i)),
			KitchenOrderNumber: "00" + string(rune('1'+i)),
			GuestNumber:        i + 1,
			GuestName:          name,
			SeatID:             "p1",
			PodSelectionMethod: "AUTO_ASSIGNED",
			TotalCents:         1296,
			PaidAt:             "2026-03-01T18:00:00Z",
		})
		if err != nil {
			t.Fatal(err)
		}
		if err := a.handleMessage(body); err != nil {
			t.Fatalf("handleMessage: %v", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines: %q", len(lines), data)
	}
	if !strings.Contains(lines[1], `guest=2 "Ben"`) || !strings.Contains(lines[1], "order=ORD_20260301_002") {
		t.Fatalf("line = %q", lines[1])
	}
}

func TestAuditConsumerRejectsGarbage(t *testing.T) {
	a := NewAuditConsumer("", filepath.Join(t.TempDir(), "handoff.log"), nil)
	if err := a.handleMessage([]byte("{not json")); err == nil {
		t.Fatal("expected unmarshal error")
	}
}
