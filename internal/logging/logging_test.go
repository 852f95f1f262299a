package logging

import (
	"testing"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

func TestNew_Level(t *testing.T) {
	if got := New("debug", "json").GetLevel(); got != logrus.DebugLevel {
		t.Errorf("expected debug level, got %s", got)
	}
	if got := New("nonsense", "text").GetLevel(); got != logrus.InfoLevel {
		t.Errorf("expected info fallback, got %s", got)
	}
}

func TestAsynqLevel(t *testing.T) {
	cases := map[string]asynq.LogLevel{
		"debug": asynq.DebugLevel,
		"WARN":  asynq.WarnLevel,
		"error": asynq.ErrorLevel,
		"info":  asynq.InfoLevel,
		"":      asynq.InfoLevel,
	}
	for in, want := range cases {
		if got := AsynqLevel(in); got != want {
			t.Errorf("AsynqLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
