package service

import (
	"errors"

	"yield-ledger/pkg/apperror"
	"yield-ledger/pkg/logger"

	"github.com/rs/zerolog"
)

var errNonPositiveRate = errors.New("provider returned a non-positive rate")

// inconsistent logs err at the highest severity and returns INC_001. The
// surrounding unit of work must be rolled back by the caller.
func inconsistent(log zerolog.Logger, err error, fields map[string]any) error {
	logger.Critical(log).Err(err).Fields(fields).Msg("ledger inconsistency, manual reconciliation required")
	return apperror.ErrInconsistency(err)
}
