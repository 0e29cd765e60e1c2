// Package host inspects the local system before services bind.
package host

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/prometheus/procfs"

	"grimm.is/rtmirror/internal/config"
)

// Listener is a TCP port the configuration wants to bind.
type Listener struct {
	Port    int
	Service string
}

// Owner is the process holding a listening socket.
type Owner struct {
	PID     int
	CmdLine string
}

// Listeners returns the TCP ports the enabled endpoints will bind.
// Port 0 (ephemeral) never conflicts and is skipped.
func Listeners(cfg *config.Config) []Listener {
	var out []Listener
	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		if p := parsePort(cfg.Metrics.Listen); p > 0 {
			out = append(out, Listener{Port: p, Service: "metrics"})
		}
	}
	if cfg.API != nil && cfg.API.Enabled {
		if p := parsePort(cfg.API.Listen); p > 0 {
			out = append(out, Listener{Port: p, Service: "API"})
		}
	}
	return out
}

// CheckPortConflicts scans /proc for processes already listening on the
// configured ports and returns one warning per conflict.
func CheckPortConflicts(cfg *config.Config) ([]string, error) {
	wanted := Listeners(cfg)
	if len(wanted) == 0 {
		return nil, nil
	}

	owners, err := scanListeners("/proc")
	if err != nil {
		return nil, fmt.Errorf("failed to scan open ports: %w", err)
	}

	var warnings []string
	for _, l := range wanted {
		owner, ok := owners[l.Port]
		if !ok || owner.PID == os.Getpid() {
			continue
		}
		warnings = append(warnings, fmt.Sprintf("Port %d/tcp is in use by '%s' (PID %d). The %s endpoint will fail to start.",
			l.Port, owner.CmdLine, owner.PID, l.Service))
	}
	return warnings, nil
}

func parsePort(addr string) int {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	p, _ := strconv.Atoi(portStr)
	return p
}

// scanListeners maps listening TCP ports to their owning process, the way
// ss does: socket inodes from /proc/<pid>/fd joined with /proc/net/tcp{,6}.
func scanListeners(procRoot string) (map[int]Owner, error) {
	fs, err := procfs.NewFS(procRoot)
	if err != nil {
		return nil, err
	}

	inodes, err := socketOwners(fs)
	if err != nil {
		return nil, err
	}

	owners := make(map[int]Owner)
	for _, table := range []func() (procfs.NetTCP, error){fs.NetTCP, fs.NetTCP6} {
		lines, err := table()
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, line := range lines {
			if line.St != tcpListen {
				continue
			}
			if owner, ok := inodes[line.Inode]; ok {
				owners[int(line.LocalPort)] = owner
			}
		}
	}
	return owners, nil
}

// socketOwners maps socket inodes to the process holding them. Processes
// that vanish or cannot be inspected are skipped.
func socketOwners(fs procfs.FS) (map[uint64]Owner, error) {
	procs, err := fs.AllProcs()
	if err != nil {
		return nil, err
	}

	owners := make(map[uint64]Owner)
	for _, p := range procs {
		targets, err := p.FileDescriptorTargets()
		if err != nil {
			continue
		}

		cmd := ""
		for _, target := range targets {
			inode, ok := socketInode(target)
			if !ok {
				continue
			}
			if cmd == "" {
				cmd = cmdName(p)
			}
			owners[inode] = Owner{PID: p.PID, CmdLine: cmd}
		}
	}
	return owners, nil
}

// socketInode parses an fd link target of the form "socket:[12345]".
func socketInode(target string) (uint64, bool) {
	s, ok := strings.CutPrefix(target, "socket:[")
	if !ok {
		return 0, false
	}
	s, ok = strings.CutSuffix(s, "]")
	if !ok {
		return 0, false
	}
	inode, err := strconv.ParseUint(s, 10, 64)
	return inode, err == nil
}

func cmdName(p procfs.Proc) string {
	args, err := p.CmdLine()
	if err != nil || len(args) == 0 {
		return fmt.Sprintf("PID %d", p.PID)
	}
	return filepath.Base(args[0])
}

// tcpListen is TCP_LISTEN in /proc/net/tcp's st column.
const tcpListen = 0x0A
