// Package domain implements the WebIssues entity model: users,
// projects, folders, issue types, attributes, issues with their
// comments, attachments and changes, and saved views with their filter
// definitions.
//
// Entities are constructed from protocol rows and fail fast on rows of
// the wrong shape; malformed server data is a contract violation, not a
// soft condition. Collections are insertion-ordered with id- and
// name-based lookup. Nothing in this package performs I/O or locking;
// the Environment in the application layer owns both.
package domain
