package notifier

import (
	"os"
	"testing"

	"unilink-backend/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.InitDefault()
	os.Exit(m.Run())
}
