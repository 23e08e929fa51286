// Package audit records security-relevant identity and authorization events:
// signups, logins, logouts, password changes, role changes, healthcare access
// grants and revocations, and authorization denials.
//
// Events flow through the Logger interface to one or more sinks. The database
// sink keeps a queryable trail; the log sink mirrors events into the service
// log; the S3 archiver ships aged events to object storage.
package audit
