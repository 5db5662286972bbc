package database

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// ErrorKind classifies a StorageError.
type ErrorKind string

const (
	KindConnection ErrorKind = "connection"
	KindConstraint ErrorKind = "constraint"
	KindQuery      ErrorKind = "query"
)

// mysql errors that mean a row was rejected by the schema
var mysqlConstraintCodes = map[uint16]bool{
	1048: true, // column cannot be null
	1062: true, // duplicate entry
	1406: true, // data too long
	1451: true, // foreign key (parent)
	1452: true, // foreign key (child)
	1264: true, // out of range
}

// StorageError wraps any failure talking to the relational store. The
// repository never retries; callers decide what a failure means.
type StorageError struct {
	Op    string
	Table string
	Kind  ErrorKind
	Err   error
}

func (e *StorageError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("storage %s error on %s (%s): %v", e.Kind, e.Table, e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s error (%s): %v", e.Kind, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func newStorageError(op, table string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Table: table, Kind: classify(err), Err: err}
}

// IsConnection reports whether err is a StorageError caused by an unreachable
// store.
func IsConnection(err error) bool {
	var se *StorageError
	return errors.As(err, &se) && se.Kind == KindConnection
}

func classify(err error) ErrorKind {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		if mysqlConstraintCodes[myErr.Number] {
			return KindConstraint
		}
		return KindQuery
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "23":
			return KindConstraint
		case "08", "57":
			return KindConnection
		}
		return KindQuery
	}

	var netErr net.Error
	switch {
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone),
		errors.Is(err, mysql.ErrInvalidConn),
		errors.As(err, &netErr):
		return KindConnection
	}
	return KindQuery
}
