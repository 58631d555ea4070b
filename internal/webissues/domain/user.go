package domain

import (
	"github.com/praveencs87/mylyn-webissues-sub001/internal/protocol"
)

// AccessLevel is a user's server-wide permission level.
type AccessLevel int

const (
	AccessNone   AccessLevel = 0
	AccessNormal AccessLevel = 1
	AccessAdmin  AccessLevel = 2
)

// User is a server account. Users are owned by the Environment's user
// collection and immutable except via explicit reload.
type User struct {
	ID     int
	Login  string
	Name   string
	Access AccessLevel
}

// NewUserFromRow constructs a User from a `U <id> '<login>' '<name>'
// <access>` row.
func NewUserFromRow(row protocol.Row) (*User, error) {
	if err := row.RequireTag(protocol.TagUser); err != nil {
		return nil, err
	}
	if err := row.Require(4); err != nil {
		return nil, err
	}
	id, err := row.Int(0)
	if err != nil {
		return nil, err
	}
	access, err := row.Int(3)
	if err != nil {
		return nil, err
	}
	return &User{
		ID:     id,
		Login:  row.String(1),
		Name:   row.String(2),
		Access: AccessLevel(access),
	}, nil
}

func (u *User) EntityID() int { return u.ID }

// EntityName returns the login, the identifier used for name lookup
// and for the created-by/modified-by pseudo attributes.
func (u *User) EntityName() string { return u.Login }

// ServerInfo is the server identification returned by HELLO and LOGIN:
// server name, reported version string, and the session user when
// authenticated.
type ServerInfo struct {
	Name    string
	Version string
	UserID  int
	Access  AccessLevel
}

// NewServerInfoFromRow constructs ServerInfo from an `O '<name>'
// '<version>' <userId> <access>` row.
func NewServerInfoFromRow(row protocol.Row) (*ServerInfo, error) {
	if err := row.RequireTag(protocol.TagServerInfo); err != nil {
		return nil, err
	}
	if err := row.Require(4); err != nil {
		return nil, err
	}
	userID, err := row.Int(2)
	if err != nil {
		return nil, err
	}
	access, err := row.Int(3)
	if err != nil {
		return nil, err
	}
	return &ServerInfo{
		Name:    row.String(0),
		Version: row.String(1),
		UserID:  userID,
		Access:  AccessLevel(access),
	}, nil
}
