package protocol

import "fmt"

// MySQLError carries a wire-level error code and SQLSTATE, so admin
// command failures reach the client as proper ERR packets.
type MySQLError struct {
	Code     uint16
	SQLState string
	Message  string
}

func (e *MySQLError) Error() string {
	return fmt.Sprintf("ERROR %d (%s): %s", e.Code, e.SQLState, e.Message)
}

func NewMySQLError(code uint16, sqlState, message string) *MySQLError {
	return &MySQLError{Code: code, SQLState: sqlState, Message: message}
}

// ErrUnknownVariable mirrors server error 1193.
func ErrUnknownVariable(name string) *MySQLError {
	return NewMySQLError(1193, "HY000", fmt.Sprintf("Unknown system variable '%s'", name))
}

// ErrBadCommand mirrors server error 1064 for malformed admin syntax.
func ErrBadCommand(msg string) *MySQLError {
	return NewMySQLError(1064, "42000", msg)
}
