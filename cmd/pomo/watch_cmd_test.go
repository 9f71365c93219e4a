package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fentz26/pomo/internal/engine"
	"github.com/fentz26/pomo/internal/models"
)

func TestReadEvents(t *testing.T) {
	stream := strings.Join([]string{
		"event:state",
		`data:{"state":{"phase":"running","remaining_seconds":1799},"display_time":"29:59"}`,
		"",
		"event:ping",
		`data:{"ignored":true}`,
		"",
		"event:state",
		`data:{"state":{"phase":"before_break","remaining_seconds":120},"notice":{"id":"n1","message":"It's time to take a break!"}}`,
		"",
	}, "\n")

	var got []engine.Snapshot
	require.NoError(t, readEvents(strings.NewReader(stream), func(s engine.Snapshot) {
		got = append(got, s)
	}))

	require.Len(t, got, 2)
	assert.Equal(t, models.PhaseRunning, got[0].State.Phase)
	assert.Equal(t, "29:59", got[0].DisplayTime)
	assert.Equal(t, models.PhaseBeforeBreak, got[1].State.Phase)
	require.NotNil(t, got[1].Notice)
	assert.Equal(t, "n1", got[1].Notice.ID)
}

func TestReadEventsRejectsBadData(t *testing.T) {
	err := readEvents(strings.NewReader("event:state\ndata:{nope\n\n"), func(engine.Snapshot) {})
	assert.Error(t, err)
}
