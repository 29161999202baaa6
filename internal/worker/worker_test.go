package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/shotdiff/internal/model"
)

const helperEnv = "SHOTDIFF_WANT_HELPER_PROCESS"

// TestHelperProcess is not a real test. It is the child process started by
// the executor tests; its behavior is selected by the --out argument.
func TestHelperProcess(t *testing.T) {
	if os.Getenv(helperEnv) != "1" {
		return
	}

	args := os.Args
	for i, a := range args {
		if a == "--" {
			args = args[i+1:]
			break
		}
	}

	out := ""
	for i, a := range args {
		if a == "--out" && i+1 < len(args) {
			out = args[i+1]
		}
	}

	switch out {
	case "fail":
		fmt.Fprintln(os.Stderr, "[ERROR] URL list is empty")
		os.Exit(ExitBatchFailure)
	case "chatty":
		fmt.Print(strings.Repeat("x", 5000) + "END")
		os.Exit(ExitOK)
	default:
		fmt.Println(strings.Join(args, " "))
		os.Exit(ExitOK)
	}
}

func helperExecutor() *ProcessExecutor {
	return NewProcessExecutor(
		WithCommand(os.Args[0], "-test.run=^TestHelperProcess$", "--"),
		WithEnv(helperEnv+"=1"),
	)
}

func TestJobArgs(t *testing.T) {
	t.Parallel()

	t.Run("minimal", func(t *testing.T) {
		t.Parallel()

		job := Job{URLsFile: "urls.txt", OutDir: "shots", Timeout: 20 * time.Second, Wait: 2 * time.Second}
		want := []string{"capture", "--urls", "urls.txt", "--out", "shots", "--timeout", "20", "--wait", "2"}
		if got := job.Args(); !slices.Equal(got, want) {
			t.Errorf("Args() = %v, want %v", got, want)
		}
	})

	t.Run("all flags", func(t *testing.T) {
		t.Parallel()

		job := Job{
			URLsFile:   "u",
			OutDir:     "o",
			Timeout:    5 * time.Second,
			Wait:       1500 * time.Millisecond,
			Headful:    true,
			UniqueKeys: true,
			ConfigFile: "/etc/shotdiff.yaml",
			Verbose:    true,
		}
		got := job.Args()
		for _, flag := range []string{"--headful", "--unique-keys", "--verbose"} {
			if !slices.Contains(got, flag) {
				t.Errorf("expected %s in %v", flag, got)
			}
		}
		if i := slices.Index(got, "--wait"); i < 0 || got[i+1] != "1.5" {
			t.Errorf("expected --wait 1.5 in %v", got)
		}
		if i := slices.Index(got, "--config"); i < 0 || got[i+1] != "/etc/shotdiff.yaml" {
			t.Errorf("expected --config in %v", got)
		}
	})
}

func TestProcessExecutor(t *testing.T) {
	t.Parallel()

	t.Run("success passes job arguments", func(t *testing.T) {
		t.Parallel()

		exec := helperExecutor().Execute(t.Context(), Job{URLsFile: "list.txt", OutDir: "out", Timeout: time.Second})
		if !exec.OK || exec.ReturnCode != 0 {
			t.Fatalf("expected success, got %+v", exec)
		}
		if !strings.Contains(exec.Stdout, "capture --urls list.txt --out out") {
			t.Errorf("unexpected stdout: %q", exec.Stdout)
		}
	})

	t.Run("non-zero exit", func(t *testing.T) {
		t.Parallel()

		exec := helperExecutor().Execute(t.Context(), Job{OutDir: "fail", Timeout: time.Second})
		if exec.OK || exec.ReturnCode != ExitBatchFailure {
			t.Fatalf("expected exit %d, got %+v", ExitBatchFailure, exec)
		}
		if !strings.Contains(exec.Stderr, "URL list is empty") {
			t.Errorf("unexpected stderr: %q", exec.Stderr)
		}
	})

	t.Run("output is truncated to the tail", func(t *testing.T) {
		t.Parallel()

		exec := helperExecutor().Execute(t.Context(), Job{OutDir: "chatty", Timeout: time.Second})
		if len(exec.Stdout) != model.MaxOutputLength {
			t.Errorf("stdout length = %d, want %d", len(exec.Stdout), model.MaxOutputLength)
		}
		if !strings.HasSuffix(exec.Stdout, "END") {
			t.Errorf("expected tail to be kept, got suffix %q", exec.Stdout[len(exec.Stdout)-10:])
		}
	})

	t.Run("missing executable", func(t *testing.T) {
		t.Parallel()

		p := NewProcessExecutor(WithCommand(filepath.Join(t.TempDir(), "does-not-exist")))
		exec := p.Execute(t.Context(), Job{})
		if exec.OK || exec.ReturnCode != ExitNotStarted {
			t.Fatalf("expected return code -1, got %+v", exec)
		}
		if exec.Stderr == "" {
			t.Error("expected start error in stderr")
		}
	})
}

func TestExecutorFunc(t *testing.T) {
	t.Parallel()

	var called Job
	var e Executor = ExecutorFunc(func(_ context.Context, job Job) model.Execution {
		called = job
		return model.NewExecution(0, "done", "")
	})

	exec := e.Execute(t.Context(), Job{OutDir: "x"})
	if !exec.OK || called.OutDir != "x" {
		t.Errorf("unexpected result %+v, job %+v", exec, called)
	}
}
