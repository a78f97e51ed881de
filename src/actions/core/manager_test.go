package core

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type stubModule struct {
	name    string
	failErr error
	log     *[]string
}

func (s *stubModule) Name() string { return s.name }

func (s *stubModule) Start(context.Context) error {
	if s.failErr != nil {
		return s.failErr
	}
	*s.log = append(*s.log, "start "+s.name)
	return nil
}

func (s *stubModule) Stop(context.Context) {
	*s.log = append(*s.log, "stop "+s.name)
}

func TestManagerStopsInReverseOrder(t *testing.T) {
	var calls []string
	m := NewManager(&stubModule{name: "a", log: &calls})
	if err := m.Add(&stubModule{name: "b", log: &calls}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Add(&stubModule{name: "late", log: &calls}); err == nil {
		t.Fatalf("add after start accepted")
	}
	if err := m.Start(context.Background()); err == nil {
		t.Fatalf("second start accepted")
	}
	m.Stop(context.Background())

	got := strings.Join(calls, ",")
	if got != "start a,start b,stop b,stop a" {
		t.Fatalf("calls = %s", got)
	}
	if names := strings.Join(m.Names(), ","); names != "a,b" {
		t.Fatalf("names = %s", names)
	}
}

func TestManagerRollsBackOnFailure(t *testing.T) {
	var calls []string
	boom := errors.New("boom")
	m := NewManager(
		&stubModule{name: "a", log: &calls},
		&stubModule{name: "b", failErr: boom, log: &calls},
		&stubModule{name: "c", log: &calls},
	)
	err := m.Start(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if got := strings.Join(calls, ","); got != "start a,stop a" {
		t.Fatalf("calls = %s", got)
	}
	m.Stop(context.Background())
	if len(calls) != 2 {
		t.Fatalf("stop after failed start touched modules: %v", calls)
	}
}
