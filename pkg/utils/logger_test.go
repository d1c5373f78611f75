package utils

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLoggerReturnsSameHandle(t *testing.T) {
	a := GetLogger("stratumdb-test")
	b := GetLogger("stratumdb-test")
	assert.Same(t, a, b)

	other := GetLogger("stratumdb-other")
	assert.NotSame(t, a, other)
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    logrus.Level
		wantErr bool
	}{
		{"DEBUG", logrus.DebugLevel, false},
		{"debug", logrus.DebugLevel, false},
		{"INFO", logrus.InfoLevel, false},
		{"", logrus.InfoLevel, false},
		{"WARN", logrus.WarnLevel, false},
		{"WARNING", logrus.WarnLevel, false},
		{"ERROR", logrus.ErrorLevel, false},
		{"chatty", logrus.InfoLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLogLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLogFormatCarriesNameAndLevel(t *testing.T) {
	l := GetLogger("fmt-test")
	var buf bytes.Buffer
	l.SetOutput(&buf)
	l.Level = logrus.InfoLevel

	l.Infof("chunk admitted at offset %d", 1024)

	out := buf.String()
	assert.Contains(t, out, "fmt-test")
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "chunk admitted at offset 1024")
}

func TestSetLogLevel(t *testing.T) {
	l := GetLogger("level-test")
	SetLogLevel(logrus.DebugLevel)
	assert.Equal(t, logrus.DebugLevel, l.Level)
	SetLogLevel(logrus.InfoLevel)
	assert.Equal(t, logrus.InfoLevel, l.Level)
}
