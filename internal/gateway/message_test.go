package gateway

import (
	"testing"

	"github.com/17z7h0m4s/exquisite-corpse/internal/engine"
)

func TestParseCommandVariants(t *testing.T) {
	cmd, err := parseCommand(clientMessage{Action: "start", Words: "a b c", Lines: 2, WordCount: 3})
	if err != nil {
		t.Fatalf("parse start failed: %v", err)
	}
	start, ok := cmd.(engine.StartCommand)
	if !ok {
		t.Fatalf("Expected StartCommand, got %T", cmd)
	}
	if start.Words != "a b c" || start.Lines != 2 || start.WordCount != 3 {
		t.Errorf("StartCommand fields mismatch: %+v", start)
	}

	cmd, err = parseCommand(clientMessage{Action: "join", Words: "d e f"})
	if err != nil {
		t.Fatalf("parse join failed: %v", err)
	}
	if join, ok := cmd.(engine.JoinCommand); !ok || join.Words != "d e f" {
		t.Errorf("Expected JoinCommand with words, got %T %+v", cmd, cmd)
	}

	if cmd, err = parseCommand(clientMessage{Action: "status"}); err != nil {
		t.Fatalf("parse status failed: %v", err)
	} else if _, ok := cmd.(engine.StatusCommand); !ok {
		t.Errorf("Expected StatusCommand, got %T", cmd)
	}

	if cmd, err = parseCommand(clientMessage{Action: "abandon"}); err != nil {
		t.Fatalf("parse abandon failed: %v", err)
	} else if _, ok := cmd.(engine.AbandonCommand); !ok {
		t.Errorf("Expected AbandonCommand, got %T", cmd)
	}
}

func TestParseCommandNormalizesAction(t *testing.T) {
	cmd, err := parseCommand(clientMessage{Action: "  Start  "})
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if _, ok := cmd.(engine.StartCommand); !ok {
		t.Errorf("Expected StartCommand, got %T", cmd)
	}
}

func TestParseCommandRejectsUnknownAction(t *testing.T) {
	if _, err := parseCommand(clientMessage{Action: "restart"}); err == nil {
		t.Error("Expected error for unknown action")
	}
	if _, err := parseCommand(clientMessage{}); err == nil {
		t.Error("Expected error for empty action")
	}
}
