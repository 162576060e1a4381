package notify

import (
	"fmt"
	"log"
	"time"
)

type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityInfo    Severity = "info"
)

// Notification is a short human-readable message for the operator.
type Notification struct {
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
	Time     time.Time `json:"time"`
}

type Notifier interface {
	Notify(n Notification)
}

// Func adapts a function to Notifier.
type Func func(n Notification)

func (f Func) Notify(n Notification) { f(n) }

func Success(msg string) Notification {
	return Notification{Severity: SeveritySuccess, Message: msg, Time: time.Now()}
}

func Info(msg string) Notification {
	return Notification{Severity: SeverityInfo, Message: msg, Time: time.Now()}
}

func Errorf(format string, args ...any) Notification {
	return Notification{Severity: SeverityError, Message: fmt.Sprintf(format, args...), Time: time.Now()}
}

// Log writes notifications to the standard logger.
type Log struct{}

func (Log) Notify(n Notification) {
	log.Printf("[%s] %s", n.Severity, n.Message)
}

// Discard drops everything.
type Discard struct{}

func (Discard) Notify(Notification) {}
