package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yusufmusharrafm/attend-snap-track-now/internal/record"
	"github.com/yusufmusharrafm/attend-snap-track-now/internal/session"
	"github.com/yusufmusharrafm/attend-snap-track-now/internal/trust"
)

// NowFunc returns the current time; mockable in tests.
var NowFunc = time.Now

// Outcome is the closed set of terminal results for one scan attempt. No
// outcome is ever retried automatically; the student re-scans or the issuer
// regenerates.
type Outcome int

const (
	OutcomeAccepted Outcome = iota
	OutcomeMalformedPayload
	OutcomeInvalidSignature
	OutcomeExpired
	OutcomeAlreadyUsed
	OutcomeDeviceNotVerified
	OutcomeNetworkCheckFailed
	OutcomeLocationCheckFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeMalformedPayload:
		return "malformed_payload"
	case OutcomeInvalidSignature:
		return "invalid_signature"
	case OutcomeExpired:
		return "expired"
	case OutcomeAlreadyUsed:
		return "already_used"
	case OutcomeDeviceNotVerified:
		return "device_not_verified"
	case OutcomeNetworkCheckFailed:
		return "network_check_failed"
	case OutcomeLocationCheckFailed:
		return "location_check_failed"
	}
	return "unknown"
}

// Policy decides what a network or location failure does to an otherwise
// valid scan. Strict rejects; Lenient records anyway with the record marked
// unverified, which mirrors how lax deployments want to behave.
type Policy int

const (
	PolicyStrict Policy = iota
	PolicyLenient
)

// ParsePolicy maps a config string to a Policy; anything unrecognised is
// strict.
func ParsePolicy(s string) Policy {
	if s == "lenient" {
		return PolicyLenient
	}
	return PolicyStrict
}

// Result is the full outcome of one validation attempt.
type Result struct {
	Outcome Outcome
	Reason  string
	Partial bool // lenient accept with failed network/location checks
	Trust   trust.Report
	Record  *record.Record
}

// Validator consumes decoded token text, runs the full admission sequence
// and, on success, emits exactly one attendance record. The step order is
// fixed: decode, signature, expiry, session state, trust gate, consume.
// Later steps trust earlier ones, so none may be reordered.
type Validator struct {
	Signer   *session.Signer
	Sessions *session.Generator
	Gate     *trust.Gate
	Sink     record.Sink
	Policy   Policy
}

// ValidateAndAccept runs one scan attempt end to end. The returned error is
// nil for every policy rejection; it is set only when an accepted record
// could not be handed to the sink.
func (v *Validator) ValidateAndAccept(ctx context.Context, rawPayload, scannerUserID string, loc trust.CoordinateSource) (Result, error) {
	p, err := session.Decode(rawPayload)
	if err != nil {
		return Result{Outcome: OutcomeMalformedPayload, Reason: err.Error()}, nil
	}

	// A bad tag is a tamper signal, not a transient failure.
	if !v.Signer.Verify(p) {
		return Result{Outcome: OutcomeInvalidSignature, Reason: "integrity check failed"}, nil
	}

	now := NowFunc()
	if now.UnixMilli() > p.ExpiresAt {
		return Result{Outcome: OutcomeExpired, Reason: "code has expired, ask for a new one"}, nil
	}

	st, ok := v.Sessions.Lookup(p.SessionID)
	if !ok {
		return Result{Outcome: OutcomeAlreadyUsed, Reason: "session is no longer outstanding"}, nil
	}
	if st != session.StateActive {
		return rejectForState(st), nil
	}

	rep := v.Gate.Evaluate(ctx, scannerUserID, loc)
	if !rep.Device.Satisfied {
		// Hard stop regardless of policy: no bound device, no attendance.
		return Result{Outcome: OutcomeDeviceNotVerified, Reason: rep.Device.Reason, Trust: rep}, nil
	}
	if v.Policy == PolicyStrict {
		if !rep.Network.Satisfied {
			return Result{Outcome: OutcomeNetworkCheckFailed, Reason: rep.Network.Reason, Trust: rep}, nil
		}
		if !rep.Location.Satisfied {
			return Result{Outcome: OutcomeLocationCheckFailed, Reason: rep.Location.Reason, Trust: rep}, nil
		}
	}

	// Compare-and-set: exactly one concurrent scan of this code gets past
	// this point.
	if err := v.Sessions.Consume(p.SessionID); err != nil {
		return rejectForConsume(err, rep), nil
	}

	rec := record.Record{
		StudentID:             scannerUserID,
		SubjectID:             p.SubjectID,
		Date:                  now.UTC().Format("2006-01-02"),
		Period:                p.Period,
		Present:               true,
		ScanTimestamp:         now.UTC(),
		DeviceID:              rep.DeviceID,
		NetworkVerifiedAtScan: rep.Network.Satisfied,
		SessionID:             p.SessionID,
	}
	res := Result{
		Outcome: OutcomeAccepted,
		Partial: !rep.Network.Satisfied || !rep.Location.Satisfied,
		Trust:   rep,
		Record:  &rec,
	}
	if err := v.Sink.Append(ctx, rec); err != nil {
		return res, fmt.Errorf("record delivery failed: %w", err)
	}
	return res, nil
}

func rejectForState(st session.State) Result {
	switch st {
	case session.StateExpired:
		return Result{Outcome: OutcomeExpired, Reason: "code has expired, ask for a new one"}
	case session.StateSuperseded:
		return Result{Outcome: OutcomeAlreadyUsed, Reason: "code was replaced by a newer one"}
	default:
		return Result{Outcome: OutcomeAlreadyUsed, Reason: "code has already been used"}
	}
}

func rejectForConsume(err error, rep trust.Report) Result {
	res := rejectForState(session.StateConsumed)
	switch {
	case errors.Is(err, session.ErrSuperseded):
		res = rejectForState(session.StateSuperseded)
	case errors.Is(err, session.ErrExpired):
		res = rejectForState(session.StateExpired)
	case errors.Is(err, session.ErrUnknownSession):
		res = Result{Outcome: OutcomeAlreadyUsed, Reason: "session is no longer outstanding"}
	}
	res.Trust = rep
	return res
}
