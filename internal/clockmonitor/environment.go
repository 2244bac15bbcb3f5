// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package clockmonitor

import (
	"bufio"
	"context"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/process"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/checkclock/internal/connectivity"
	"github.com/tomtom215/checkclock/internal/logging"
)

// Snapshot is the best-effort environment around one clock change. Any
// probe that fails leaves its field nil or empty.
type Snapshot struct {
	MachineName string
	UserName    string
	ProcessName string

	TimeZoneID string
	Location   *time.Location

	IsDaylightSaving *bool
	NetworkConnected *bool
	NTPSyncEnabled   *bool
	Uptime           *int64
	BootTime         *time.Time

	NTPSynchronized bool
	NTPServer       string
	NTPDetails      string

	Additional map[string]any
}

// Prober gathers a Snapshot. withNTP is false for timezone changes.
type Prober interface {
	Snapshot(ctx context.Context, withNTP bool) Snapshot
}

// timeDaemons are process names that keep the clock synchronized. /proc comm
// names are cut at 15 bytes, hence systemd-timesyn.
var timeDaemons = []string{"chronyd", "ntpd", "systemd-timesyncd", "systemd-timesyn", "openntpd", "timesyncd"}

// timeKeywords select processes that may have touched the clock.
var timeKeywords = []string{"time", "clock", "ntp", "chrony", "sync", "date"}

var ntpConfigFiles = []string{
	"/etc/chrony/chrony.conf",
	"/etc/chrony.conf",
	"/etc/ntp.conf",
	"/etc/ntpsec/ntp.conf",
	"/etc/systemd/timesyncd.conf",
}

// HostProber reads the local host with gopsutil and the kernel NTP state.
type HostProber struct {
	ZoneDir    string
	OfficeName string

	// InterfaceCheck defaults to connectivity.AnyInterfaceUp.
	InterfaceCheck connectivity.InterfaceCheck
}

// Snapshot runs the probes concurrently. It never fails.
func (h *HostProber) Snapshot(ctx context.Context, withNTP bool) Snapshot {
	snap := Snapshot{Additional: map[string]any{}}
	snap.MachineName, _ = os.Hostname()
	if u, err := user.Current(); err == nil {
		snap.UserName = u.Username
	}

	snap.TimeZoneID, snap.Location = CurrentZone(h.ZoneDir)
	dst := time.Now().In(snap.Location).IsDST()
	snap.IsDaylightSaving = &dst

	check := h.InterfaceCheck
	if check == nil {
		check = connectivity.AnyInterfaceUp
	}

	var (
		uptime    *int64
		boot      *time.Time
		network   *bool
		daemons   []string
		recent    string
		platform  string
		kernel    string
		synced    bool
		syncNotes string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if up, err := host.UptimeWithContext(gctx); err == nil {
			v := int64(up)
			uptime = &v
		}
		if bt, err := host.BootTimeWithContext(gctx); err == nil {
			t := time.Unix(int64(bt), 0)
			boot = &t
		}
		return nil
	})
	g.Go(func() error {
		if up, err := check(gctx); err == nil {
			network = &up
		}
		return nil
	})
	g.Go(func() error {
		daemons, recent = scanProcesses(gctx)
		return nil
	})
	g.Go(func() error {
		if info, err := host.InfoWithContext(gctx); err == nil {
			platform = info.Platform + " " + info.PlatformVersion
			kernel = info.KernelVersion
		}
		return nil
	})
	if withNTP {
		g.Go(func() error {
			var err error
			synced, syncNotes, err = kernelSynchronized()
			if err != nil {
				logging.Debug().Err(err).Msg("Kernel NTP status unavailable")
			}
			return nil
		})
	}
	_ = g.Wait()

	snap.Uptime = uptime
	snap.BootTime = boot
	snap.NetworkConnected = network
	snap.ProcessName = recent

	daemonRunning := len(daemons) > 0
	snap.NTPSyncEnabled = &daemonRunning
	if withNTP {
		snap.NTPSynchronized = synced && daemonRunning
		snap.NTPServer = ntpServerFromConfig(ntpConfigFiles)
		snap.NTPDetails = "kernel: " + syncNotes + ", daemons: " + strings.Join(daemons, ",")
	}

	_, offset := time.Now().In(snap.Location).Zone()
	snap.Additional["office_name"] = h.OfficeName
	snap.Additional["local_time_zone"] = snap.TimeZoneID
	snap.Additional["utc_offset_hours"] = float64(offset) / 3600
	snap.Additional["os"] = platform
	snap.Additional["kernel"] = kernel
	snap.Additional["arch"] = runtime.GOARCH
	snap.Additional["processor_count"] = runtime.NumCPU()
	if snap.NTPDetails != "" {
		snap.Additional["ntp_details"] = snap.NTPDetails
	}
	return snap
}

// scanProcesses returns running time daemons and the three most recently
// started time-related processes, excluding this one.
func scanProcesses(ctx context.Context) (daemons []string, recent string) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, ""
	}

	self := int32(os.Getpid())
	type candidate struct {
		name    string
		created int64
	}
	var matches []candidate

	for _, p := range procs {
		if p.Pid == self {
			continue
		}
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		lower := strings.ToLower(name)
		for _, d := range timeDaemons {
			if lower == d {
				daemons = append(daemons, name)
			}
		}
		for _, kw := range timeKeywords {
			if strings.Contains(lower, kw) {
				created, _ := p.CreateTimeWithContext(ctx)
				matches = append(matches, candidate{name: name, created: created})
				break
			}
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].created > matches[j].created })
	names := make([]string, 0, 3)
	for i := 0; i < len(matches) && i < 3; i++ {
		names = append(names, matches[i].name)
	}
	return daemons, strings.Join(names, ", ")
}

// ntpServerFromConfig returns the first server or pool named in the first
// readable config file.
func ntpServerFromConfig(paths []string) string {
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		server := parseNTPServer(bufio.NewScanner(f))
		_ = f.Close()
		if server != "" {
			return server
		}
	}
	return ""
}

func parseNTPServer(sc *bufio.Scanner) string {
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if v, ok := strings.CutPrefix(line, "NTP="); ok {
			if fields := strings.Fields(v); len(fields) > 0 {
				return fields[0]
			}
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 && (fields[0] == "server" || fields[0] == "pool") {
			return fields[1]
		}
	}
	return ""
}

// CurrentZone re-reads the system zone. time.Local is fixed at process
// start, so a zone change is only visible through the files in dir.
func CurrentZone(dir string) (string, *time.Location) {
	if dir == "" {
		return time.Local.String(), time.Local
	}

	name := ""
	if target, err := os.Readlink(filepath.Join(dir, "localtime")); err == nil {
		if _, after, ok := strings.Cut(target, "zoneinfo/"); ok {
			name = after
		}
	}
	if name == "" {
		if data, err := os.ReadFile(filepath.Join(dir, "timezone")); err == nil {
			name = strings.TrimSpace(string(data))
		}
	}
	if name == "" {
		return time.Local.String(), time.Local
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return name, time.Local
	}
	return name, loc
}
