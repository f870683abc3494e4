package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"pci-0000:00:14.0-usbv3-0:1.2", "pci-0000:00:14.0-usb-0:1.2"},
		{"pci-0000:00:14.0-usb-0:1.2.0", "pci-0000:00:14.0-usb-0:1.2"},
		{"pci-0000:00:14.0-usb-0:1.2", "pci-0000:00:14.0-usb-0:1.2"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Normalize(c.in))
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	in := "pci-0000:00:14.0-usbv3-0:1.2.0"
	once := Normalize(in)
	twice := Normalize(once)
	assert.Equal(t, once, twice)
}

func TestDedupeBySerial(t *testing.T) {
	devices := []RawBlockDevice{
		{Name: "sda", SerialShort: "WD-ABC123"},
		{Name: "sdb", SerialShort: "WD-ABC123"},
		{Name: "sdc", SerialShort: "WD-XYZ999"},
		{Name: "sdd"},
	}
	out := DedupeBySerial(devices)
	assert.Len(t, out, 3, "same-serial duplicate must collapse to one entry")
}

func TestChooseMountablePartition(t *testing.T) {
	partitions := []PartitionInfo{
		{DevNode: "/dev/sda1", Filesystem: "vfat", SectorCount: 1000},
		{DevNode: "/dev/sda2", Filesystem: "ext4", SectorCount: 5000},
		{DevNode: "/dev/sda3", Filesystem: "unknownfs", SectorCount: 9000},
	}
	best, ok := ChooseMountablePartition(partitions)
	assert.True(t, ok)
	assert.Equal(t, "/dev/sda2", best.DevNode, "must pick the largest partition with an allowed filesystem")
}

func TestChooseMountablePartition_NoneQualify(t *testing.T) {
	partitions := []PartitionInfo{
		{DevNode: "/dev/sda1", Filesystem: "zfs_member", SectorCount: 1000},
	}
	_, ok := ChooseMountablePartition(partitions)
	assert.False(t, ok)
}

func TestParsePartitions(t *testing.T) {
	lsblkJSON := `{
		"blockdevices": [
			{"name": "sda", "size": "1000000000", "children": [
				{"name": "sda1", "size": "500000000", "fstype": "ext4", "label": "root", "uuid": "abc-123", "mountpoint": "/media/cratec/sda1", "fssize": "480000000", "fsavail": "200000000"}
			]}
		]
	}`
	partitions := ParsePartitions(lsblkJSON, 512)
	if assert.Len(t, partitions, 1) {
		assert.Equal(t, "ext4", partitions[0].Filesystem)
		assert.Equal(t, "/dev/sda1", partitions[0].DevNode)
		assert.Equal(t, uint64(480000000), partitions[0].FSSizeBytes)
	}
}
