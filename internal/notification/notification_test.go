package notification

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestLog_MostRecentFirst(t *testing.T) {
	l := NewLog(0)
	l.Append(Entry{Type: "hello"})
	l.Append(Entry{Type: "update"})
	l.Append(Entry{Type: "warning"})

	entries := l.Entries()
	assert.Len(t, entries, 3)
	assert.Equal(t, "warning", entries[0].Type)
	assert.Equal(t, "update", entries[1].Type)
	assert.Equal(t, "hello", entries[2].Type)
}

func TestLog_BoundedDropsOldest(t *testing.T) {
	l := NewLog(2)
	l.Append(Entry{Message: "1"})
	l.Append(Entry{Message: "2"})
	l.Append(Entry{Message: "3"})

	entries := l.Entries()
	assert.Len(t, entries, 2)
	assert.Equal(t, "3", entries[0].Message)
	assert.Equal(t, "2", entries[1].Message)
}

func TestLog_EntriesIsCopy(t *testing.T) {
	l := NewLog(0)
	l.Append(Entry{Message: "a"})

	entries := l.Entries()
	entries[0].Message = "changed"

	assert.Equal(t, "a", l.Entries()[0].Message)
	l.Clear()
	assert.Equal(t, 0, l.Len())
}

func TestLogNotifier_WritesLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})

	n := NewLogNotifier(logrus.NewEntry(logger))
	n.Notify(Error("Connection", "server unreachable"))

	assert.Contains(t, buf.String(), `"level":"error"`)
	assert.Contains(t, buf.String(), "server unreachable")
	assert.Contains(t, buf.String(), `"title":"Connection"`)
}

func TestConstructors_UseDefaultTiming(t *testing.T) {
	for _, n := range []Notification{Error("a", "b"), Warning("a", "b"), Info("a", "b")} {
		assert.Equal(t, DefaultDuration, n.Duration)
		assert.Equal(t, DefaultSpeed, n.Speed)
	}
}
