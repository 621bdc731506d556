package service

import "errors"

var ErrStatusUpdateFailed = errors.New("order status update failed")
