// Package notification carries user-facing toasts and the observability log
// of real-time messages.
package notification

import (
	"time"

	"github.com/sirupsen/logrus"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Default presentation parameters for transient toasts
const (
	DefaultDuration = 4 * time.Second
	DefaultSpeed    = 300 * time.Millisecond
)

// Notification is a transient toast shown to the operator
type Notification struct {
	Level    Level
	Title    string
	Message  string
	Duration time.Duration
	Speed    time.Duration // animation speed
}

// Notifier presents notifications. Implementations must be safe for
// concurrent use.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// Error builds an error toast with default timing
func Error(title, message string) Notification {
	return Notification{Level: LevelError, Title: title, Message: message, Duration: DefaultDuration, Speed: DefaultSpeed}
}

// Warning builds a warning toast with default timing
func Warning(title, message string) Notification {
	return Notification{Level: LevelWarning, Title: title, Message: message, Duration: DefaultDuration, Speed: DefaultSpeed}
}

// Info builds an info toast with default timing
func Info(title, message string) Notification {
	return Notification{Level: LevelInfo, Title: title, Message: message, Duration: DefaultDuration, Speed: DefaultSpeed}
}

// LogNotifier renders notifications as log lines. It is the notifier used by
// the headless binary.
type LogNotifier struct {
	log *logrus.Entry
}

func NewLogNotifier(log *logrus.Entry) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(note Notification) {
	entry := n.log.WithFields(logrus.Fields{
		"title":    note.Title,
		"duration": note.Duration,
	})
	switch note.Level {
	case LevelError:
		entry.Error(note.Message)
	case LevelWarning:
		entry.Warn(note.Message)
	default:
		entry.Info(note.Message)
	}
}

// Discard drops every notification
var Discard Notifier = NotifierFunc(func(Notification) {})
