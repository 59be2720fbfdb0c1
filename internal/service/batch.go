package service

import (
	"fmt"

	ierr "github.com/invoicekit/invoicekit/internal/errors"
	"github.com/invoicekit/invoicekit/internal/logger"
)

// isolate runs one item of a batch. A panic is turned into an error so the remaining
// items still run.
func isolate(log *logger.Logger, item string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorw("panic while processing batch item",
				"item", item,
				"panic", r,
			)
			err = ierr.NewError(fmt.Sprintf("panic: %v", r)).
				WithHint("Unexpected failure while processing the item").
				Mark(ierr.ErrSystem)
		}
	}()
	return fn()
}
