// Package application implements the WebIssues client itself: the
// port interfaces the host must supply (transport, credentials,
// progress), the command/response protocol client with its
// authentication retry, and the Environment aggregate that owns the
// cached entity model and its reload semantics.
//
// The domain package carries the entities; this package carries the
// I/O and the locking. When importing both, alias to disambiguate:
//
//	import (
//	    domain "github.com/praveencs87/mylyn-webissues-sub001/internal/webissues/domain"
//	    application "github.com/praveencs87/mylyn-webissues-sub001/internal/webissues/application"
//	)
package application
