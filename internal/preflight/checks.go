package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"fieldsync/internal/connectivity"
	"fieldsync/internal/remote"
)

// MinFreeBytes is the free space below which the queue may fail to persist.
const MinFreeBytes = 64 << 20

const checkTimeout = 10 * time.Second

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies the filesystem holding path has at least min bytes
// available to unprivileged writers.
func CheckFreeSpace(name, path string, min uint64) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("statfs %s: %v", path, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	detail := fmt.Sprintf("%s free", formatBytes(free))
	if free < min {
		return Result{Name: name, Detail: fmt.Sprintf("%s (need %s)", detail, formatBytes(min))}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

type pinger interface {
	Ping(ctx context.Context) (int, error)
	BaseURL() string
}

// CheckAPI verifies the records API answers. Any HTTP response below 500
// counts as reachable; auth is only exercised by real submissions.
func CheckAPI(ctx context.Context, client pinger) Result {
	const name = "Records API"

	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	status, err := client.Ping(checkCtx)
	if err != nil {
		if remote.IsKind(err, remote.KindConfiguration) {
			return Result{Name: name, Detail: "api.base_url not configured"}
		}
		return Result{Name: name, Detail: summarizeNetError(err)}
	}
	if status >= http.StatusInternalServerError {
		return Result{Name: name, Detail: fmt.Sprintf("%s answered %d", client.BaseURL(), status)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s reachable (%d)", client.BaseURL(), status)}
}

// CheckConnectivity runs one connectivity probe.
func CheckConnectivity(ctx context.Context, prober connectivity.Prober) Result {
	const name = "Connectivity probe"

	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	state := prober.Probe(checkCtx)
	switch {
	case state.Online():
		return Result{Name: name, Passed: true, Detail: "online"}
	case state.Connected:
		return Result{Name: name, Detail: "connected but internet unreachable"}
	default:
		return Result{Name: name, Detail: "no usable network interface"}
	}
}

func summarizeNetError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "request timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "request timed out"
	}
	return err.Error()
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
