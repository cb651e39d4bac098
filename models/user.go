package models

import (
	"fmt"
	"time"
)

// User represents a row in the "users" table.
// Fields map 1-to-1 with columns; nullable columns are pointers.
type User struct {
	ID               int64
	FaceToken        *string
	FingerprintToken *string
	FirstName        *string
	LastName         *string
	CreatedAt        time.Time
}

// Token returns the value stored for kind, or "" when the column is NULL.
func (u *User) Token(kind TokenKind) string {
	var p *string
	switch kind {
	case KindFace:
		p = u.FaceToken
	case KindFingerprint:
		p = u.FingerprintToken
	}
	if p == nil {
		return ""
	}
	return *p
}

// TokenKind names an identifier namespace. Each kind owns exactly one column
// and never matches another kind's values.
type TokenKind string

const (
	KindFace        TokenKind = "face"
	KindFingerprint TokenKind = "fingerprint"
)

// Kinds lists every supported kind.
var Kinds = []TokenKind{KindFace, KindFingerprint}

// Column returns the users column holding tokens of this kind. The column
// name comes from a fixed whitelist and is safe to splice into SQL.
func (k TokenKind) Column() (string, error) {
	switch k {
	case KindFace:
		return "face_token", nil
	case KindFingerprint:
		return "fingerprint_token", nil
	}
	return "", fmt.Errorf("models: unknown token kind %q", string(k))
}

// Valid reports whether k is a supported kind.
func (k TokenKind) Valid() bool {
	_, err := k.Column()
	return err == nil
}

func (k TokenKind) String() string { return string(k) }
