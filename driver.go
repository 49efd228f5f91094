package dronelink

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// LinkID identifies one candidate physical link as reported by a driver.
type LinkID struct {
	Name  string
	Index int // ordering key within a driver, ascending

	IsUSB        bool
	VID, PID     string
	SerialNumber string
	Manufacturer string
	Product      string
}

func (id LinkID) String() string {
	if !id.IsUSB {
		return id.Name
	}
	var out strings.Builder
	out.WriteString(id.Name)
	fmt.Fprintf(&out, " [%s:%s]", id.VID, id.PID)
	if id.Manufacturer != "" || id.Product != "" {
		out.WriteString(" " + strings.TrimSpace(id.Manufacturer+" | "+id.Product))
	}
	if id.SerialNumber != "" {
		out.WriteString(" sn " + id.SerialNumber)
	}
	return out.String()
}

// Link is an open physical link. Reads return (0, nil) when the read timeout
// expires without data.
type Link interface {
	io.ReadCloser
	Configure(LinkMode) error
}

// Driver discovers and opens links of one kind.
type Driver interface {
	Name() string
	// Enumerate returns the candidates that could be probe-opened.
	Enumerate(ctx context.Context) ([]LinkID, error)
	Open(id LinkID) (Link, error)
}

// DriverConfig is handed to a registered driver constructor.
type DriverConfig struct {
	Debug  bool
	Logger *zerolog.Logger
	// AdditionalConfig carries driver specific settings.
	AdditionalConfig map[string]string
}

type DriverInfo struct {
	Name        string
	Description string
	New         func(*DriverConfig) (Driver, error)
}

func (d *DriverInfo) String() string {
	return fmt.Sprintf("%s | %s", d.Name, d.Description)
}

var (
	driverMu  sync.RWMutex
	driverMap = make(map[string]*DriverInfo)
)

func RegisterDriver(driver *DriverInfo) error {
	driverMu.Lock()
	defer driverMu.Unlock()
	if _, found := driverMap[driver.Name]; !found {
		driverMap[driver.Name] = driver
		return nil
	}
	return fmt.Errorf("driver %s already registered", driver.Name)
}

func NewDriver(driverName string, cfg *DriverConfig) (Driver, error) {
	if cfg == nil {
		cfg = &DriverConfig{}
	}
	if cfg.Logger == nil {
		cfg.Logger = defaultLogger()
	}
	driverMu.RLock()
	driver, found := driverMap[driverName]
	driverMu.RUnlock()
	if !found {
		return nil, fmt.Errorf("%w %q", ErrUnknownDriver, driverName)
	}
	return driver.New(cfg)
}

func ListDriverNames() []string {
	driverMu.RLock()
	defer driverMu.RUnlock()
	return sortedNamesLocked()
}

func ListDrivers() []DriverInfo {
	driverMu.RLock()
	defer driverMu.RUnlock()
	var out []DriverInfo
	for _, name := range sortedNamesLocked() {
		out = append(out, *driverMap[name])
	}
	return out
}

func sortedNamesLocked() []string {
	var out []string
	for name := range driverMap {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i]) < strings.ToLower(out[j]) })
	return out
}

// SortLinkIDs orders ids ascending by Index, then by name with embedded
// numbers compared numerically (COM2 before COM10).
func SortLinkIDs(ids []LinkID) {
	sort.SliceStable(ids, func(i, j int) bool {
		if ids[i].Index != ids[j].Index {
			return ids[i].Index < ids[j].Index
		}
		return naturalLess(ids[i].Name, ids[j].Name)
	})
}

func naturalLess(a, b string) bool {
	for a != "" && b != "" {
		da, ra := leadingNumber(a)
		db, rb := leadingNumber(b)
		if da != "" && db != "" {
			na := strings.TrimLeft(da, "0")
			nb := strings.TrimLeft(db, "0")
			if len(na) != len(nb) {
				return len(na) < len(nb)
			}
			if na != nb {
				return na < nb
			}
			a, b = ra, rb
			continue
		}
		if a[0] != b[0] {
			return a[0] < b[0]
		}
		a, b = a[1:], b[1:]
	}
	return len(a) < len(b)
}

func leadingNumber(s string) (digits, rest string) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[:i], s[i:]
}
