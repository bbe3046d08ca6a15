package p2pchat

import (
	"errors"
	"fmt"
	"testing"
)

func TestConnectionState_String(t *testing.T) {
	tests := []struct {
		state    ConnectionState
		expected string
	}{
		{StateConnecting, "Connecting"},
		{StateUnauthenticated, "ConnectedUnauthenticated"},
		{StateSecured, "ConnectedSecured"},
		{StateClosed, "Closed"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.state.String(); got != tt.expected {
				t.Errorf("String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestDirection_String(t *testing.T) {
	if Inbound.String() != "inbound" {
		t.Errorf("Inbound.String() = %q", Inbound.String())
	}
	if Outbound.String() != "outbound" {
		t.Errorf("Outbound.String() = %q", Outbound.String())
	}
}

func TestConnectionEvent_IsError(t *testing.T) {
	ok := ConnectionEvent{Identity: "10.0.0.2:8888", State: StateSecured}
	if ok.IsError() {
		t.Error("event without error should not be an error")
	}

	failed := ConnectionEvent{
		Identity: "10.0.0.2:8888",
		State:    StateClosed,
		Error:    fmt.Errorf("%w: connection reset", ErrTransport),
	}
	if !failed.IsError() {
		t.Error("event with error should be an error")
	}
	if failed.IsDuplicate() {
		t.Error("transport failure is not a duplicate")
	}
}

func TestConnectionEvent_IsDuplicate(t *testing.T) {
	e := ConnectionEvent{
		Identity: "10.0.0.2:51234",
		State:    StateClosed,
		Error:    fmt.Errorf("%w: key already bound to 10.0.0.2:8888", ErrDuplicateConnection),
	}
	if !e.IsDuplicate() {
		t.Error("wrapped ErrDuplicateConnection should be a duplicate")
	}
	if !errors.Is(e.Error, ErrDuplicateConnection) {
		t.Error("event error should match ErrDuplicateConnection")
	}
}

func TestBroadcastResult_Err(t *testing.T) {
	var nilResult *BroadcastResult
	if nilResult.Err() != nil {
		t.Error("nil result should have no error")
	}

	ok := &BroadcastResult{Delivered: []string{"a:1"}}
	if ok.Err() != nil {
		t.Error("result without failures should have no error")
	}

	partial := &BroadcastResult{
		Delivered: []string{"a:1"},
		Failed: map[string]error{
			"b:2": ErrNoSession,
			"c:3": fmt.Errorf("%w: broken pipe", ErrTransport),
		},
	}
	err := partial.Err()
	if err == nil {
		t.Fatal("partial failure should report an error")
	}
	if !errors.Is(err, ErrNoSession) || !errors.Is(err, ErrTransport) {
		t.Errorf("combined error should match every failure, got %v", err)
	}
}
