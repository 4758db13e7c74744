package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

func New(message string) error {
	return errors.New(message)
}

func Errorf(format string, args ...interface{}) error {
	return errors.Errorf(format, args...)
}

func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

// RetCode carries the HTTP status a wrapped error should be reported with.
type RetCode struct {
	Code int
	err  error
}

func (e RetCode) Error() string { return e.err.Error() }
func (e RetCode) Unwrap() error { return e.err }

func WithCode(err error, code int) error {
	if err == nil {
		return nil
	}
	return RetCode{Code: code, err: err}
}

// Response writes the broker's JSON error body and the status carried by
// the error chain, defaulting to 500.
func Response(ctx *gin.Context, err error) {
	code := http.StatusInternalServerError
	var ret RetCode
	if errors.As(err, &ret) {
		code = ret.Code
	}
	ctx.JSON(code, gin.H{"error": err.Error()})
}
