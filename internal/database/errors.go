package database

import (
	"errors"
	"strings"

	"github.com/lib/pq"
)

// pgUniqueViolation is the SQLSTATE for unique_violation
const pgUniqueViolation = "23505"

// UniqueViolation reports whether err was raised by a unique constraint and,
// if so, returns a detail string naming the constraint or column involved
// (e.g. "users_email_key" on Postgres, "users.email" on SQLite).
func UniqueViolation(err error) (string, bool) {
	if err == nil {
		return "", false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if string(pqErr.Code) != pgUniqueViolation {
			return "", false
		}
		return pqErr.Constraint, true
	}

	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint") {
		return msg, true
	}

	return "", false
}
