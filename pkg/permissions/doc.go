// Package permissions defines the static capability catalog for Tracklet.
//
// A Capability is a single permission token gating one class of operation on
// personal health data. A Role is a named bundle that resolves to a fixed
// capability set. The catalog is closed: roles and capabilities are compile
// time constants, and the role-to-capability mapping is a total function over
// the three roles. Role strings read back from storage may be stale or
// unrecognized; those fail safe to the standard user capability set.
package permissions
