// Package monitor records security events and detects anomalous
// activity patterns.
//
// Events are kept in a bounded in-memory ring buffer so the monitor
// never grows without bound. Recording an event of warning severity or
// higher triggers the detectors: repeated failed logins for the same
// subject raise a critical brute force event, and a sustained flood of
// events from one client address raises a high volume event. Detector
// events are recorded through the same path but are never themselves
// analyzed, so detection cannot cascade.
package monitor
