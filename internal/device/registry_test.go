package device

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZebulonRouseFrantzich/bootstick/internal/runner"
)

// Modern util-linux: numeric sizes, boolean flags.
const modernLsblk = `{
   "blockdevices": [
      {"name":"/dev/nvme0n1", "kname":"/dev/nvme0n1", "size":512110190592, "model":"Samsung SSD 980", "vendor":null, "tran":"nvme", "hotplug":false, "type":"disk", "mountpoint":null,
         "children": [
            {"name":"/dev/nvme0n1p1", "kname":"/dev/nvme0n1p1", "size":536870912, "model":null, "vendor":null, "tran":null, "hotplug":false, "type":"part", "mountpoint":"/boot/efi"},
            {"name":"/dev/nvme0n1p2", "kname":"/dev/nvme0n1p2", "size":511571623936, "model":null, "vendor":null, "tran":null, "hotplug":false, "type":"part", "mountpoint":"/"}
         ]
      },
      {"name":"/dev/sdb", "kname":"/dev/sdb", "size":8004829184, "model":"DataTraveler 3.0", "vendor":"Kingston", "tran":"usb", "hotplug":true, "type":"disk", "mountpoint":null,
         "children": [
            {"name":"/dev/sdb1", "kname":"/dev/sdb1", "size":8003780608, "model":null, "vendor":null, "tran":null, "hotplug":true, "type":"part", "mountpoint":"/media/op/STICK"}
         ]
      },
      {"name":"/dev/sr0", "kname":"/dev/sr0", "size":1073741312, "model":"DVD-RW", "vendor":"HL-DT-ST", "tran":"sata", "hotplug":true, "type":"rom", "mountpoint":null},
      {"name":"/dev/sdc", "kname":"/dev/sdc", "size":15938355200, "model":"Cruzer Blade", "vendor":"SanDisk ", "tran":"usb", "hotplug":true, "type":"disk", "mountpoint":null}
   ]
}`

// Older util-linux: everything is a string.
const legacyLsblk = `{
   "blockdevices": [
      {"name":"/dev/sda", "kname":"/dev/sda", "size":"256060514304", "model":"CT256MX100SSD1", "vendor":"ATA     ", "tran":"sata", "hotplug":"0", "type":"disk", "mountpoint":null,
         "children": [
            {"name":"/dev/sda1", "kname":"/dev/sda1", "size":"256059465728", "model":null, "vendor":null, "tran":null, "hotplug":"0", "type":"part", "mountpoint":"/"}
         ]
      },
      {"name":"/dev/sdd", "kname":"/dev/sdd", "size":"31457280000", "model":"Ultra Fit", "vendor":"SanDisk", "tran":"usb", "hotplug":"1", "type":"disk", "mountpoint":null}
   ]
}`

func fakeSysfs(t *testing.T, removable map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, value := range removable {
		dir := filepath.Join(root, "block", name)
		require.NoError(t, os.MkdirAll(dir, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "removable"), []byte(value+"\n"), 0644))
	}
	return root
}

func TestRegistry_ListUSBCandidates(t *testing.T) {
	sysfs := fakeSysfs(t, map[string]string{"nvme0n1": "0", "sdb": "1", "sdc": "1"})
	fake := runner.NewFake().Set("lsblk", 0, modernLsblk)
	reg := NewRegistry(fake, nil, WithSysfsRoot(sysfs))

	devices, err := reg.ListUSBCandidates(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 2)

	sdb := devices[0]
	assert.Equal(t, "/dev/sdb", sdb.Path)
	assert.Equal(t, "sdb", sdb.KernelName)
	assert.Equal(t, uint64(8004829184), sdb.Size)
	assert.Equal(t, "Kingston", sdb.Vendor)
	assert.Equal(t, "DataTraveler 3.0", sdb.Model)
	assert.Equal(t, TransportUSB, sdb.Transport)
	assert.True(t, sdb.Hotplug)
	assert.True(t, sdb.IsRemovable())
	assert.Equal(t, []string{"/media/op/STICK"}, sdb.MountPoints)

	assert.Equal(t, "/dev/sdc", devices[1].Path)
	assert.Equal(t, "SanDisk", devices[1].Vendor)

	calls := fake.CallsTo("lsblk")
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"-J", "-b", "-p", "-o", lsblkColumns}, calls[0].Args)
}

func TestRegistry_ListAll_LegacyDialect(t *testing.T) {
	sysfs := fakeSysfs(t, map[string]string{"sda": "0"})
	fake := runner.NewFake().Set("lsblk", 0, legacyLsblk)
	reg := NewRegistry(fake, nil, WithSysfsRoot(sysfs))

	devices, err := reg.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 2)

	assert.Equal(t, uint64(256060514304), devices[0].Size)
	assert.Equal(t, TransportSATA, devices[0].Transport)
	assert.False(t, devices[0].Hotplug)
	assert.Equal(t, []string{"/"}, devices[0].MountPoints)

	// sdd has no sysfs attribute: unreadable stays empty.
	assert.Equal(t, "", devices[1].Removable)
	assert.False(t, devices[1].IsRemovable())
	assert.True(t, devices[1].Hotplug)
}

func TestRegistry_MergesHostMounts(t *testing.T) {
	sysfs := fakeSysfs(t, map[string]string{"sdb": "1", "sdc": "1"})
	fake := runner.NewFake().Set("lsblk", 0, modernLsblk)
	mounts := StaticMounts{
		{Source: "/dev/sdb1", MountPoint: "/media/op/STICK"},
		{Source: "/dev/sdb1", MountPoint: "/home/op/bind"},
		{Source: "/dev/sdc", MountPoint: "/mnt/raw"},
		{Source: "tmpfs", MountPoint: "/run"},
	}
	reg := NewRegistry(fake, mounts, WithSysfsRoot(sysfs))

	devices, err := reg.ListUSBCandidates(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, []string{"/media/op/STICK", "/home/op/bind"}, devices[0].MountPoints)
	assert.Equal(t, []string{"/mnt/raw"}, devices[1].MountPoints)
}

func TestRegistry_QueryErrors(t *testing.T) {
	tests := []struct {
		name string
		fake *runner.Fake
	}{
		{
			name: "lsblk missing",
			fake: runner.NewFake(),
		},
		{
			name: "lsblk fails",
			fake: runner.NewFake().Set("lsblk", 1, "lsblk: cannot open /sys"),
		},
		{
			name: "garbage output",
			fake: runner.NewFake().Set("lsblk", 0, "not json"),
		},
		{
			name: "missing blockdevices key",
			fake: runner.NewFake().Set("lsblk", 0, `{"devices": []}`),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry(tt.fake, nil, WithSysfsRoot(t.TempDir()))
			_, err := reg.ListUSBCandidates(context.Background())
			var qerr *QueryError
			require.True(t, errors.As(err, &qerr), "want QueryError, got %v", err)
		})
	}
}

func TestRegistry_Resolve(t *testing.T) {
	single := `{"blockdevices":[{"name":"/dev/sdb","kname":"/dev/sdb","size":8004829184,"model":"DataTraveler 3.0","vendor":"Kingston","tran":"usb","hotplug":true,"type":"disk","mountpoint":null}]}`
	sysfs := fakeSysfs(t, map[string]string{"sdb": "1"})

	t.Run("present", func(t *testing.T) {
		fake := runner.NewFake().Set("lsblk", 0, single)
		reg := NewRegistry(fake, nil, WithSysfsRoot(sysfs))

		dev, err := reg.Resolve(context.Background(), "/dev/sdb")
		require.NoError(t, err)
		assert.Equal(t, uint64(8004829184), dev.Size)
		assert.Equal(t, "/dev/sdb", fake.CallsTo("lsblk")[0].Args[5])
	})

	t.Run("gone", func(t *testing.T) {
		fake := runner.NewFake().Set("lsblk", 32, "lsblk: /dev/sdb: not a block device")
		reg := NewRegistry(fake, nil, WithSysfsRoot(sysfs))

		_, err := reg.Resolve(context.Background(), "/dev/sdb")
		assert.ErrorIs(t, err, ErrDeviceNotFound)
	})
}

func TestParseTransport(t *testing.T) {
	tests := map[string]Transport{
		"usb":  TransportUSB,
		"USB":  TransportUSB,
		"sata": TransportSATA,
		"ata":  TransportSATA,
		"nvme": TransportNVMe,
		"mmc":  TransportOther,
		"":     TransportOther,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseTransport(in), "ParseTransport(%q)", in)
	}
}

func TestBlockDevice_IsRemovable(t *testing.T) {
	for value, want := range map[string]bool{"1": true, " 1 ": true, "0": false, "": false, "yes": false} {
		assert.Equal(t, want, BlockDevice{Removable: value}.IsRemovable(), "Removable=%q", value)
	}
}
