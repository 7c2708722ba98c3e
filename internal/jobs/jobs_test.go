package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartSchedule(t *testing.T) {
	s, err := StartSchedule("disabled", 0, func() {})
	assert.NoError(t, err)
	assert.Nil(t, s)

	ran := make(chan struct{}, 4)
	s, err = StartSchedule("sweep", 20*time.Millisecond, func() { ran <- struct{}{} })
	require.NoError(t, err)
	require.NotNil(t, s)
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled task never ran")
	}
}
