package backend

import (
	"bytes"
	"testing"

	"github.com/docker/docker/pkg/stdcopy"
)

func TestHostConfigSetsMemoryAndCPU(t *testing.T) {
	d := NewDriver(nil, "")
	hc := d.hostConfig(256)

	if hc.Memory != 256*1024*1024 {
		t.Fatalf("Memory = %d, want %d", hc.Memory, 256*1024*1024)
	}
	if hc.CPUQuota != 100000 {
		t.Fatalf("CPUQuota = %d, want 100000", hc.CPUQuota)
	}
	if hc.Runtime != "" {
		t.Fatalf("Runtime = %q, want empty for the standard backend", hc.Runtime)
	}
}

func TestBuildEnvIncludesInputDataAndFunctionVars(t *testing.T) {
	env := buildEnv([]byte(`{"n":1}`), map[string]string{"API_KEY": "secret", "MODE": "prod"})

	want := map[string]bool{
		`INPUT_DATA={"n":1}`: false,
		"API_KEY=secret":      false,
		"MODE=prod":           false,
	}
	if len(env) != len(want) {
		t.Fatalf("len(env) = %d, want %d (env=%v)", len(env), len(want), env)
	}
	for _, kv := range env {
		if _, ok := want[kv]; !ok {
			t.Fatalf("unexpected env entry %q", kv)
		}
		want[kv] = true
	}
	for kv, seen := range want {
		if !seen {
			t.Fatalf("missing env entry %q, got %v", kv, env)
		}
	}
	if env[0] != `INPUT_DATA={"n":1}` {
		t.Fatalf("INPUT_DATA must be first entry, got %v", env)
	}
}

func TestBuildEnvWithNoFunctionVarsOnlyHasInputData(t *testing.T) {
	env := buildEnv([]byte(`{}`), nil)
	if len(env) != 1 || env[0] != "INPUT_DATA={}" {
		t.Fatalf("env = %v, want exactly [INPUT_DATA={}]", env)
	}
}

func TestDemuxStdoutStripsStdcopyFramingAndDropsStderr(t *testing.T) {
	envelope := `{"result":{"msg":"hi"},"status":"success","error":null,"metrics":{"duration_ms":5,"memory_used_mb":1,"cpu_percent":1}}` + "\n"

	var framed bytes.Buffer
	stdoutW := stdcopy.NewStdWriter(&framed, stdcopy.Stdout)
	if _, err := stdoutW.Write([]byte(envelope)); err != nil {
		t.Fatalf("write stdout frame: %v", err)
	}
	stderrW := stdcopy.NewStdWriter(&framed, stdcopy.Stderr)
	if _, err := stderrW.Write([]byte("some noisy wrapper log\n")); err != nil {
		t.Fatalf("write stderr frame: %v", err)
	}

	got, err := demuxStdout(&framed)
	if err != nil {
		t.Fatalf("demuxStdout: %v", err)
	}
	if string(got) != envelope {
		t.Fatalf("demuxStdout = %q, want %q (stderr must not leak in and framing bytes must be stripped)", got, envelope)
	}
}

func TestHostConfigSetsSandboxRuntime(t *testing.T) {
	d := NewDriver(nil, "runsc")
	hc := d.hostConfig(128)

	if hc.Runtime != "runsc" {
		t.Fatalf("Runtime = %q, want runsc", hc.Runtime)
	}
}
