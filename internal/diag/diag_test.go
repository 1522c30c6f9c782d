package diag

import "testing"

type fakeTask struct {
	exited bool
}

func (f *fakeTask) Exit() { f.exited = true }

func TestWarnWritesLine(t *testing.T) {
	Row = &Buffer{}
	Warn("disk busy on sector %d", 7)
	buf := Row.(*Buffer)
	if len(buf.Lines) != 1 || buf.Lines[0] != "WARN: disk busy on sector 7" {
		t.Fatalf("unexpected lines: %v", buf.Lines)
	}
}

func TestKillLogsAndTerminatesTask(t *testing.T) {
	Row = &Buffer{}
	task := &fakeTask{}
	Kill(task, "null pointer dereference at %#x", 0)
	if !task.exited {
		t.Fatalf("expected Kill to call Exit on the offending task")
	}
	buf := Row.(*Buffer)
	if len(buf.Lines) != 1 {
		t.Fatalf("expected one diagnostic line")
	}
}

func TestFatalInvokesHaltHook(t *testing.T) {
	Row = &Buffer{}
	halted := false
	SetFatalFunc(func() { halted = true })
	defer SetFatalFunc(func() { panic("kernel halted") })

	Fatal("out of pinned memory during boot")
	if !halted {
		t.Fatalf("expected Fatal to invoke the halt hook")
	}
	buf := Row.(*Buffer)
	if len(buf.Lines) != 1 {
		t.Fatalf("expected one diagnostic line")
	}
}
