package database

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"mysql duplicate", &mysql.MySQLError{Number: 1062}, KindConstraint},
		{"mysql null column", &mysql.MySQLError{Number: 1048}, KindConstraint},
		{"mysql syntax", &mysql.MySQLError{Number: 1064}, KindQuery},
		{"mysql invalid conn", mysql.ErrInvalidConn, KindConnection},
		{"pq unique", &pq.Error{Code: "23505"}, KindConstraint},
		{"pq admin shutdown", &pq.Error{Code: "57P01"}, KindConnection},
		{"pq connection failure", &pq.Error{Code: "08006"}, KindConnection},
		{"bad conn", driver.ErrBadConn, KindConnection},
		{"conn done", sql.ErrConnDone, KindConnection},
		{"wrapped", fmt.Errorf("insert: %w", &pq.Error{Code: "23503"}), KindConstraint},
		{"other", errors.New("something"), KindQuery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.err); got != tt.want {
				t.Errorf("classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewStorageError(t *testing.T) {
	if newStorageError("op", "t", nil) != nil {
		t.Error("newStorageError(nil) should be nil")
	}

	inner := &StorageError{Op: "inner", Kind: KindConnection, Err: errors.New("x")}
	if got := newStorageError("outer", "t", inner); got != error(inner) {
		t.Errorf("existing StorageError should pass through, got %v", got)
	}

	err := newStorageError("insert", "weather_data", &mysql.MySQLError{Number: 1406, Message: "Data too long"})
	want := "storage constraint error on weather_data (insert): Error 1406: Data too long"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
