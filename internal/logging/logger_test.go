package logging

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNew_PrefixesAppName(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput("kost", "debug", &buf)

	logger.WithField("room_id", "r1").Debug("assign")

	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.Contains(t, buf.String(), "[kost] assign")
	assert.Contains(t, buf.String(), "room_id=r1")
}

func TestNew_InvalidLevelFallsBack(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput("kost", "loud", &buf)

	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	assert.Contains(t, buf.String(), "Invalid LOG_LEVEL 'loud'")
}

func TestNew_EmptyLevelIsInfo(t *testing.T) {
	logger := NewWithOutput("kost", "", &bytes.Buffer{})
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}
