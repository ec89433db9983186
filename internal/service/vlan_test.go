package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const vlanBrief = `show vlan brief

VLAN Name                             Status    Ports
---- -------------------------------- --------- -------------------------------
1    default                          active    Eth1/3, Eth1/4
10   SERVERS                          active    Eth1/1, Eth1/2
                                                Eth1/6
20   STORAGE                          active    Eth1/5
leaf-01# `

func TestParseVLANBrief(t *testing.T) {
	vlans := ParseVLANBrief(vlanBrief)
	require.Len(t, vlans, 3)
	assert.Equal(t, VLANInfo{ID: 10, Name: "SERVERS", Status: "active", Ports: []string{"Eth1/1", "Eth1/2", "Eth1/6"}}, vlans[10], "续行端口归入上一 VLAN")
	assert.Equal(t, []string{"Eth1/5"}, vlans[20].Ports)

	sorted := SortedVLANs(vlans)
	assert.Equal(t, 1, sorted[0].ID)
	assert.Equal(t, 20, sorted[2].ID)
	assert.Empty(t, ParseVLANBrief("% Invalid command at '^' marker."))
}

func TestFindInterfaceVLAN(t *testing.T) {
	v, ok := FindInterfaceVLAN(vlanBrief, "Ethernet1/2")
	require.True(t, ok)
	assert.Equal(t, 10, v.ID)

	v, ok = FindInterfaceVLAN(vlanBrief, "eth1/5")
	require.True(t, ok)
	assert.Equal(t, "STORAGE", v.Name)

	v, ok = FindInterfaceVLAN(vlanBrief, "e1/6")
	require.True(t, ok, "e1/6 简写")
	assert.Equal(t, 10, v.ID)

	_, ok = FindInterfaceVLAN(vlanBrief, "Ethernet1/48")
	assert.False(t, ok)
	_, ok = FindInterfaceVLAN(vlanBrief, " ")
	assert.False(t, ok)
}

func TestInterfaceInRequest(t *testing.T) {
	cases := map[string]string{
		"which vlan is e1/7 on":         "e1/7",
		"What VLAN is Ethernet1/12 in?": "Ethernet1/12",
		"is eth 1/3 an access port":     "eth 1/3",
		"vlan of port-channel10":        "port-channel10",
		"check e1/1/2 assignment":       "e1/1/2",
	}
	for in, want := range cases {
		got, ok := InterfaceInRequest(in)
		assert.True(t, ok, "输入: %q", in)
		assert.Equal(t, want, got, "输入: %q", in)
	}
	_, ok := InterfaceInRequest("show vlan brief")
	assert.False(t, ok)
	_, ok = InterfaceInRequest("show version e1")
	assert.False(t, ok, "缺少槽位号不视为接口")
}
