// Package query shapes MDS Provider API filter arguments into canonical
// query parameters.
package query

import (
	"errors"
	"net/url"
	"strconv"
	"time"
)

// Endpoint is one of the two MDS Provider API resources.
type Endpoint string

const (
	// Trips is the trips resource.
	Trips Endpoint = "trips"

	// StatusChanges is the status_changes resource.
	StatusChanges Endpoint = "status_changes"
)

// ErrUnknownEndpoint is returned for an endpoint other than trips or
// status_changes.
var ErrUnknownEndpoint = errors.New("unknown endpoint")

// ErrFilterNotSupported is returned when a trips-only filter is set on a
// status_changes request.
var ErrFilterNotSupported = errors.New("filter not supported for endpoint")

// TimeArg is a time-bound filter value: either a calendar time or a raw
// Unix-seconds count. Whatever the input form, it is serialized as integer
// Unix seconds.
type TimeArg interface {
	unixSeconds() int64
}

type timeArg struct{ t time.Time }

func (a timeArg) unixSeconds() int64 { return a.t.Unix() }

type epochArg struct{ sec int64 }

func (a epochArg) unixSeconds() int64 { return a.sec }

// Time wraps a calendar time as a filter value.
func Time(t time.Time) TimeArg { return timeArg{t: t} }

// Unix wraps a raw Unix-seconds value.
func Unix(sec int64) TimeArg { return epochArg{sec: sec} }

// UnixFloat wraps a fractional Unix-seconds value, truncating to whole
// seconds.
func UnixFloat(sec float64) TimeArg { return epochArg{sec: int64(sec)} }

// Filters are the recognized MDS filter arguments. Zero-valued fields are
// omitted from the query string entirely; the transport layer must never
// see empty filters.
type Filters struct {
	// DeviceID filters trips taken by a device. Trips only.
	DeviceID string

	// VehicleID filters trips taken by a vehicle. Trips only.
	VehicleID string

	// StartTime is the inclusive lower time bound.
	StartTime TimeArg

	// EndTime is the inclusive upper time bound.
	EndTime TimeArg

	// BBox is a bounding box as four comma-separated floats: southwest
	// longitude, southwest latitude, northeast longitude, northeast
	// latitude. Not validated locally; a malformed box is the remote
	// server's error to report.
	BBox string

	// Extra passes additional keys through unchanged.
	Extra map[string]string
}

// Build normalizes filters into query parameters for the given endpoint.
func Build(endpoint Endpoint, f Filters) (url.Values, error) {
	switch endpoint {
	case Trips, StatusChanges:
	default:
		return nil, ErrUnknownEndpoint
	}

	if endpoint == StatusChanges && (f.DeviceID != "" || f.VehicleID != "") {
		return nil, ErrFilterNotSupported
	}

	params := url.Values{}

	if f.DeviceID != "" {
		params.Set("device_id", f.DeviceID)
	}
	if f.VehicleID != "" {
		params.Set("vehicle_id", f.VehicleID)
	}
	if f.StartTime != nil {
		params.Set("start_time", strconv.FormatInt(f.StartTime.unixSeconds(), 10))
	}
	if f.EndTime != nil {
		params.Set("end_time", strconv.FormatInt(f.EndTime.unixSeconds(), 10))
	}
	if f.BBox != "" {
		params.Set("bbox", f.BBox)
	}
	for k, v := range f.Extra {
		params.Set(k, v)
	}

	return params, nil
}
