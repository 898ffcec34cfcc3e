package monitor

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"time"

	"github.com/xdrop/cartel/pkg/types"
)

// Checker runs a single probe attempt and reports whether it succeeded.
type Checker interface {
	Check(ctx context.Context) (bool, error)
}

// NewChecker builds the Checker implementation matching probe.Kind. A
// LogLine probe with an invalid regex never panics: it yields a checker
// whose Check always reports the compile error, which the monitor
// worker maps to MonitorError.
func NewChecker(probe *types.ProbeSpec) Checker {
	switch probe.Kind {
	case types.ProbeNet:
		return &netChecker{host: probe.Host, port: probe.Port}
	case types.ProbeLogLine:
		regex, err := regexp.Compile(probe.LineRegex)
		if err != nil {
			return &errChecker{err: fmt.Errorf("invalid line_regex %q: %w", probe.LineRegex, err)}
		}
		return &logLineChecker{regex: regex}
	default:
		return &execChecker{command: probe.Command, workingDir: probe.WorkingDir}
	}
}

// errChecker always fails with a fixed error, used when a probe cannot
// even be constructed (e.g. a LineRegex that fails to compile).
type errChecker struct{ err error }

func (c *errChecker) Check(ctx context.Context) (bool, error) { return false, c.err }

// execChecker runs a command and succeeds if it exits zero.
type execChecker struct {
	command    []string
	workingDir string
}

func (c *execChecker) Check(ctx context.Context) (bool, error) {
	if len(c.command) == 0 {
		return false, nil
	}
	cmd := exec.CommandContext(ctx, c.command[0], c.command[1:]...)
	cmd.Dir = c.workingDir
	err := cmd.Run()
	if err == nil {
		return true, nil
	}
	if _, ok := err.(*exec.ExitError); ok {
		return false, nil
	}
	return false, err
}

// netChecker succeeds if a TCP connection to host:port can be
// established.
type netChecker struct {
	host string
	port int
}

func (c *netChecker) Check(ctx context.Context) (bool, error) {
	dialer := net.Dialer{Timeout: 2 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(c.host, strconv.Itoa(c.port)))
	if err != nil {
		return false, nil
	}
	conn.Close()
	return true, nil
}

// logLineChecker succeeds if any line appended to the watched file since
// the checker was created matches regex.
type logLineChecker struct {
	regex    *regexp.Regexp
	filePath string
	offset   int64
}

// bindFile attaches the checker to the module's log file once the
// monitor learns its path.
func (c *logLineChecker) bindFile(path string) {
	c.filePath = path
	if info, err := os.Stat(path); err == nil {
		c.offset = info.Size()
	}
}

func (c *logLineChecker) Check(ctx context.Context) (bool, error) {
	if c.filePath == "" {
		return false, nil
	}
	f, err := os.Open(c.filePath)
	if err != nil {
		return false, nil
	}
	defer f.Close()

	if _, err := f.Seek(c.offset, 0); err != nil {
		return false, nil
	}

	scanner := bufio.NewScanner(f)
	matched := false
	for scanner.Scan() {
		if c.regex.MatchString(scanner.Text()) {
			matched = true
		}
	}
	return matched, nil
}
