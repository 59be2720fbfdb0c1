package scheduler

import ierr "github.com/invoicekit/invoicekit/internal/errors"

var errPanicked = ierr.NewError("scheduler job panicked").Mark(ierr.ErrSystem)
