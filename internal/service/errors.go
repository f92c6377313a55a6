package service

import (
	"errors"
	"github.com/rookgm/reviewmart/internal/logger"
	"github.com/rookgm/reviewmart/internal/models"
	"go.uber.org/zap"
)

// classify passes application errors through. Other errors are logged
// and hidden behind the generic message.
func classify(err error, op string, fields ...zap.Field) error {
	var appErr *models.Error
	if errors.As(err, &appErr) {
		if !appErr.Kind.Public() {
			logger.Log.Error(op, append(fields, zap.Error(err))...)
		}
		return err
	}

	logger.Log.Error(op, append(fields, zap.Error(err))...)
	return models.InternalError(err)
}
