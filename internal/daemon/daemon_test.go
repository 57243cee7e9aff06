package daemon_test

import (
	"context"
	"testing"

	"neuroskip/internal/daemon"
	"neuroskip/internal/testsupport"
)

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, err := daemon.New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if addr := d.APIAddr(); addr == "" {
		t.Error("api address must be bound after start")
	}

	status := d.Status(context.Background())
	if !status.Running {
		t.Error("status must report running")
	}
	if status.TaskDBPath == "" || status.LockFilePath == "" {
		t.Errorf("incomplete status: %+v", status)
	}

	d.Stop()
	if d.Status(context.Background()).Running {
		t.Error("status must report stopped after Stop")
	}
}

func TestDaemonSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, err := daemon.New(cfg, nil)
	if err != nil {
		t.Fatalf("New first: %v", err)
	}
	t.Cleanup(func() { _ = first.Close() })
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start first: %v", err)
	}
	t.Cleanup(first.Stop)

	second, err := daemon.New(cfg, nil)
	if err != nil {
		t.Fatalf("New second: %v", err)
	}
	t.Cleanup(func() { _ = second.Close() })
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("second instance must fail to start while the first holds the lock")
	}
}

func TestDaemonStartTwiceFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, err := daemon.New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(d.Stop)
	if err := d.Start(context.Background()); err == nil {
		t.Fatal("starting a running daemon must fail")
	}
}
