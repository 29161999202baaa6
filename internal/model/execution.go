package model

// MaxOutputLength is the number of trailing characters of the capture
// worker's stdout and stderr kept in a report.
const MaxOutputLength = 4000

// Execution is the outcome of the capture worker process.
type Execution struct {
	// OK is true when the worker exited with status 0.
	OK bool `json:"ok"`

	// ReturnCode is the worker's exit status, or -1 if it could not be started.
	ReturnCode int `json:"returncode"`

	// Stdout holds the tail of the worker's standard output.
	Stdout string `json:"stdout"`

	// Stderr holds the tail of the worker's standard error.
	Stderr string `json:"stderr"`
}

// NewExecution builds an Execution from an exit status and the full output
// streams, truncating both streams to MaxOutputLength characters.
func NewExecution(returnCode int, stdout, stderr string) Execution {
	return Execution{
		OK:         returnCode == 0,
		ReturnCode: returnCode,
		Stdout:     TailOutput(stdout, MaxOutputLength),
		Stderr:     TailOutput(stderr, MaxOutputLength),
	}
}

// TailOutput returns the last n characters of s.
func TailOutput(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
