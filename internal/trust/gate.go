package trust

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Result is the outcome of one admission predicate. Reason is set only when
// the predicate is not satisfied.
type Result struct {
	Satisfied bool   `json:"satisfied"`
	Reason    string `json:"reason,omitempty"`
}

// Coordinates is a WGS84 point.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Bounds is the campus boundary box.
type Bounds struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// Contains reports whether c lies inside the box.
func (b Bounds) Contains(c Coordinates) bool {
	return c.Lat >= b.MinLat && c.Lat <= b.MaxLat &&
		c.Lng >= b.MinLng && c.Lng <= b.MaxLng
}

// NetworkProbe asks the campus network controller whether a device is
// currently associated with the trusted network.
type NetworkProbe interface {
	Connected(ctx context.Context, deviceID string) (bool, error)
}

// CoordinateSource yields the scanner's current position. Implementations
// may involve real I/O and are expected to honour the context deadline.
type CoordinateSource interface {
	Current(ctx context.Context) (Coordinates, error)
}

// Fixed is a CoordinateSource that always reports the same point, typically
// coordinates the scanning client sent along with the request.
type Fixed Coordinates

func (f Fixed) Current(ctx context.Context) (Coordinates, error) {
	return Coordinates(f), nil
}

// DeviceDirectory resolves a user's bound device. Pure lookup, never
// time-sensitive.
type DeviceDirectory interface {
	DeviceBinding(ctx context.Context, userID string) (deviceID string, verified bool, err error)
}

// Report carries all three predicate results. Failures are never collapsed:
// the scanner UI shows the student exactly which checks are missing.
type Report struct {
	Network  Result `json:"network"`
	Location Result `json:"location"`
	Device   Result `json:"device"`

	DeviceID string `json:"-"`
}

// Satisfied reports whether every predicate passed.
func (r Report) Satisfied() bool {
	return r.Network.Satisfied && r.Location.Satisfied && r.Device.Satisfied
}

// Gate bundles the three non-cryptographic admission checks layered on top
// of signature and expiry validation. Every predicate fails closed: an
// erroring, timed-out or unavailable collaborator counts as not satisfied.
type Gate struct {
	Probe           NetworkProbe
	Directory       DeviceDirectory
	Bounds          Bounds
	LocationTimeout time.Duration
}

const defaultLocationTimeout = 5 * time.Second

// CheckNetworkPresence re-checks network association at scan time. Results
// from session creation are never reused.
func (g *Gate) CheckNetworkPresence(ctx context.Context, deviceID string) Result {
	if g.Probe == nil {
		return Result{Reason: "network probe unavailable"}
	}
	ok, err := g.Probe.Connected(ctx, deviceID)
	if err != nil {
		return Result{Reason: fmt.Sprintf("network check failed: %v", err)}
	}
	if !ok {
		return Result{Reason: "not connected to the campus network"}
	}
	return Result{Satisfied: true}
}

// CheckGeolocation resolves the scanner's position and tests it against the
// campus bounds. Denied, unsupported or slow location access all read as
// off-campus.
func (g *Gate) CheckGeolocation(ctx context.Context, src CoordinateSource) Result {
	if src == nil {
		return Result{Reason: "no location source"}
	}
	timeout := g.LocationTimeout
	if timeout <= 0 {
		timeout = defaultLocationTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c, err := src.Current(ctx)
	if err != nil {
		return Result{Reason: fmt.Sprintf("location unavailable: %v", err)}
	}
	if !g.Bounds.Contains(c) {
		return Result{Reason: "outside campus bounds"}
	}
	return Result{Satisfied: true}
}

// CheckDeviceVerified looks up whether the scanner has a previously bound,
// verified device.
func (g *Gate) CheckDeviceVerified(ctx context.Context, userID string) (Result, string) {
	if g.Directory == nil {
		return Result{Reason: "device directory unavailable"}, ""
	}
	deviceID, verified, err := g.Directory.DeviceBinding(ctx, userID)
	if err != nil {
		return Result{Reason: fmt.Sprintf("device lookup failed: %v", err)}, ""
	}
	if deviceID == "" {
		return Result{Reason: "no device registered"}, ""
	}
	if !verified {
		return Result{Reason: "device not verified"}, deviceID
	}
	return Result{Satisfied: true}, deviceID
}

// Evaluate runs all three predicates and reports every failure. The device
// lookup runs first so the network probe can ask about the bound device;
// network and location then run concurrently since both may block on I/O.
func (g *Gate) Evaluate(ctx context.Context, userID string, src CoordinateSource) Report {
	var rep Report
	rep.Device, rep.DeviceID = g.CheckDeviceVerified(ctx, userID)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		rep.Network = g.CheckNetworkPresence(ctx, rep.DeviceID)
	}()
	go func() {
		defer wg.Done()
		rep.Location = g.CheckGeolocation(ctx, src)
	}()
	wg.Wait()
	return rep
}
