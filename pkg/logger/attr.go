package logger

import (
	"log/slog"
	"time"
)

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Component records which engine component emitted the record.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// NotificationID records the notification identifier under the key
// "notification_id". If id is nil, it returns an empty Attr.
func NotificationID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("notification_id", id)
}

// ApplicationID records the application identifier under the key
// "application_id". If id is nil, it returns an empty Attr.
func ApplicationID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("application_id", id)
}

// DeviceID records the device identifier under the key "device_id".
// If id is nil, it returns an empty Attr.
func DeviceID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("device_id", id)
}

// NotifierKey records the notifier name under the key "notifier".
func NotifierKey(key string) slog.Attr {
	return slog.String("notifier", key)
}

// Elapsed records a duration under the key "elapsed".
func Elapsed(d time.Duration) slog.Attr {
	return slog.Duration("elapsed", d)
}
