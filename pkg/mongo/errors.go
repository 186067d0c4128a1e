package mongo

import "errors"

var (
	ErrConnectionFailed  = errors.New("mongo: connection failed")
	ErrHealthcheckFailed = errors.New("mongo: healthcheck failed")
)
