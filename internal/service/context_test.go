package service

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionContextUpdateAndNotes(t *testing.T) {
	c := NewSessionContext(10)
	assert.Empty(t, c.Snapshot().LastCommand)

	c.Update("show vlan brief", "10 SERVERS active")
	n := c.AddNote("check vlans", []string{"show vlan brief"}, strings.Repeat("f", 30))
	assert.Equal(t, "ffffffffff...", n.KeyFindings, "摘要按长度截断")

	snap := c.Snapshot()
	assert.Equal(t, "show vlan brief", snap.LastCommand)
	assert.Equal(t, "10 SERVERS active", snap.LastOutput)
	require.Len(t, snap.Notes, 1)
	assert.Equal(t, "check vlans", snap.Notes[0].Request)

	snap.Notes[0].Request = "mutated"
	assert.Equal(t, "check vlans", c.Snapshot().Notes[0].Request, "快照与内部状态相互独立")
}

func TestSessionContextKeepsRecentNotes(t *testing.T) {
	c := NewSessionContext(0)
	for i := 0; i < maxNotes+5; i++ {
		c.AddNote(fmt.Sprintf("req-%d", i), nil, "")
	}
	notes := c.Snapshot().Notes
	require.Len(t, notes, maxNotes)
	assert.Equal(t, "req-5", notes[0].Request)
	assert.Equal(t, fmt.Sprintf("req-%d", maxNotes+4), notes[len(notes)-1].Request)
}
