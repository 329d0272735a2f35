// Package preflight provides startup validation checks for the load
// generation core: file descriptor headroom, goroutine/thread limits, and
// ephemeral port availability for the concurrency level a run requests.
package preflight

import (
	"fmt"
	"os"
	"strings"
	"syscall"
)

// Note: syscall.RLIMIT_NPROC is not exported in Go's syscall package,
// so we read process limits from /proc/self/limits instead.

// Check represents the result of a single preflight check.
type Check struct {
	Name     string // Name of the check
	Required int    // Required value (if applicable)
	Actual   int    // Actual value found
	Passed   bool   // Whether the check passed
	Warning  bool   // True if it's a warning (non-fatal)
	Message  string // Additional context
}

// Result holds the results of all preflight checks.
type Result struct {
	Checks []Check
	Passed bool
}

// String returns a human-readable summary of the check.
func (c Check) String() string {
	status := "✓"
	if !c.Passed {
		status = "✗"
	} else if c.Warning {
		status = "⚠"
	}

	if c.Required > 0 {
		return fmt.Sprintf("  %s %s: %d available (need %d)", status, c.Name, c.Actual, c.Required)
	}
	return fmt.Sprintf("  %s %s: %s", status, c.Name, c.Message)
}

// RunAll executes all preflight checks for a run expecting to reach
// maxConcurrency simultaneous in-flight iterations, dispatched through a
// backpressure queue sized queueSize.
func RunAll(maxConcurrency, queueSize int) *Result {
	result := &Result{
		Checks: make([]Check, 0, 4),
		Passed: true,
	}

	fdCheck := checkFileDescriptors(maxConcurrency)
	result.Checks = append(result.Checks, fdCheck)
	if !fdCheck.Passed {
		result.Passed = false
	}

	threadCheck := checkThreadLimit(maxConcurrency)
	result.Checks = append(result.Checks, threadCheck)
	if !threadCheck.Passed {
		result.Passed = false
	}

	// Ephemeral port check (warning only): relevant to network-bound tasks
	// that dial a fresh connection per iteration.
	portCheck := checkEphemeralPorts(maxConcurrency)
	result.Checks = append(result.Checks, portCheck)

	// Queue headroom check (warning only): a queue shorter than the
	// expected in-flight concurrency starts shedding load on the first
	// burst rather than absorbing it.
	queueCheck := checkQueueHeadroom(maxConcurrency, queueSize)
	result.Checks = append(result.Checks, queueCheck)

	return result
}

// checkFileDescriptors verifies sufficient file descriptors are available
// for maxConcurrency simultaneous in-flight iterations plus process
// overhead (metrics server, log files, config file handles).
func checkFileDescriptors(maxConcurrency int) Check {
	var limit syscall.Rlimit
	syscall.Getrlimit(syscall.RLIMIT_NOFILE, &limit)

	// Each in-flight iteration may hold a socket or file; budget 2 FDs
	// per slot plus fixed process overhead.
	required := maxConcurrency*2 + 50
	actual := int(limit.Cur)

	return Check{
		Name:     "file_descriptors",
		Required: required,
		Actual:   actual,
		Passed:   actual >= required,
		Message:  fmt.Sprintf("ulimit -n %d (need %d for concurrency %d)", actual, required, maxConcurrency),
	}
}

// checkThreadLimit verifies the process has enough OS thread/process
// headroom for an IoBound substrate's goroutine-per-iteration fan-out.
func checkThreadLimit(maxConcurrency int) Check {
	required := maxConcurrency/4 + 50

	data, err := os.ReadFile("/proc/self/limits")
	if err != nil {
		return Check{
			Name:    "thread_limit",
			Passed:  true,
			Warning: true,
			Message: "unable to check (non-Linux or restricted)",
		}
	}

	actual := 0
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "Max processes") {
			fields := strings.Fields(line)
			if len(fields) >= 4 {
				if fields[3] == "unlimited" {
					actual = 1000000
				} else {
					fmt.Sscanf(fields[3], "%d", &actual)
				}
			}
			break
		}
	}

	if actual == 0 {
		return Check{
			Name:    "thread_limit",
			Passed:  true,
			Warning: true,
			Message: "unable to determine (assuming OK)",
		}
	}

	return Check{
		Name:     "thread_limit",
		Required: required,
		Actual:   actual,
		Passed:   actual >= required,
		Message:  fmt.Sprintf("ulimit -u %d (need %d)", actual, required),
	}
}

// checkEphemeralPorts checks if enough ephemeral ports are available for
// network-bound tasks that open one connection per iteration.
func checkEphemeralPorts(maxConcurrency int) Check {
	data, err := os.ReadFile("/proc/sys/net/ipv4/ip_local_port_range")
	if err != nil {
		return Check{
			Name:    "ephemeral_ports",
			Passed:  true,
			Warning: true,
			Message: "unable to read port range (non-Linux?)",
		}
	}

	var low, high int
	fmt.Sscanf(string(data), "%d %d", &low, &high)
	available := high - low

	// Headroom for TIME_WAIT accumulation under sustained load.
	recommended := maxConcurrency * 4

	return Check{
		Name:     "ephemeral_ports",
		Required: recommended,
		Actual:   available,
		Passed:   true, // Don't fail on this
		Warning:  available < recommended,
		Message:  fmt.Sprintf("%d-%d (%d available, recommend %d)", low, high, available, recommended),
	}
}

// checkQueueHeadroom warns when the configured backpressure queue is
// shorter than the concurrency a run expects to sustain, since a short
// queue starts dropping iterations on the first burst instead of
// smoothing over it.
func checkQueueHeadroom(maxConcurrency, queueSize int) Check {
	return Check{
		Name:     "queue_headroom",
		Required: maxConcurrency,
		Actual:   queueSize,
		Passed:   true, // warning only; the engine runs fine with a short queue, just sheds sooner
		Warning:  queueSize < maxConcurrency,
		Message:  fmt.Sprintf("queue size %d (recommend >= %d for expected concurrency)", queueSize, maxConcurrency),
	}
}

// PrintResults prints the preflight check results to stdout.
func PrintResults(result *Result) {
	fmt.Println("Preflight checks:")
	for _, check := range result.Checks {
		fmt.Println(check.String())
		if !check.Passed {
			fmt.Printf("    Fix: %s\n", suggestFix(check.Name))
		}
	}
	fmt.Println()
}

// suggestFix returns a suggestion for fixing a failed check.
func suggestFix(name string) string {
	switch name {
	case "file_descriptors":
		return "ulimit -n 8192 (or edit /etc/security/limits.conf)"
	case "thread_limit":
		return "ulimit -u 4096 (or edit /etc/security/limits.conf)"
	case "queue_headroom":
		return "raise -queue-size to match expected concurrency"
	default:
		return "see documentation"
	}
}
