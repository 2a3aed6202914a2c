package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestImageName(t *testing.T) {
	ts := time.Date(2025, 3, 10, 9, 30, 5, 123456789, time.Local)

	assert.Equal(t, "20250310_093005_123456_Alice_Smith.jpg", ImageName(ts, "Alice Smith"))
	assert.Equal(t, "20250310_093005_123456_Unknown.jpg", ImageName(ts, "Unknown"))
	assert.Equal(t, "20250310_093005_123456_Unknown.jpg", ImageName(ts, "  "))

	name := ImageName(ts, "../../etc/passwd")
	assert.NoError(t, ValidateImageName(name), name)
}
