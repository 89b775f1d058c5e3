// Licensed under the MIT License.

package ubuildlib

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/snnbyyds/ubuntu-build/internal/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderSourcesList(t *testing.T) {
	config := testConfig()

	sources := RenderSourcesList(config)
	assert.Equal(t,
		"deb http://archive.ubuntu.com/ubuntu/ noble main restricted universe multiverse\n"+
			"deb http://archive.ubuntu.com/ubuntu/ noble-updates main restricted universe multiverse\n"+
			"deb http://archive.ubuntu.com/ubuntu/ noble-security main restricted universe multiverse\n",
		sources)
}

func TestWriteHostname(t *testing.T) {
	b := testBuilder(t)
	b.config.Hostname = "live-test"
	require.NoError(t, os.MkdirAll(b.chroot.RootDir(), os.ModePerm))

	require.NoError(t, b.writeHostname())

	hostname, err := file.Read(filepath.Join(b.chroot.RootDir(), "etc/hostname"))
	require.NoError(t, err)
	assert.Equal(t, "live-test\n", hostname)

	hosts, err := file.Read(filepath.Join(b.chroot.RootDir(), "etc/hosts"))
	require.NoError(t, err)
	assert.Contains(t, hosts, "127.0.1.1\tlive-test")
	assert.Contains(t, hosts, "127.0.0.1\tlocalhost")
}

func TestWriteHostnameDefault(t *testing.T) {
	b := testBuilder(t)
	require.NoError(t, os.MkdirAll(b.chroot.RootDir(), os.ModePerm))

	require.NoError(t, b.writeHostname())

	hostname, err := file.Read(filepath.Join(b.chroot.RootDir(), "etc/hostname"))
	require.NoError(t, err)
	assert.Equal(t, defaultHostname+"\n", hostname)
}

func TestWriteNetplanHandsInterfacesToNetworkManager(t *testing.T) {
	b := testBuilder(t)
	require.NoError(t, os.MkdirAll(b.chroot.RootDir(), os.ModePerm))

	require.NoError(t, b.writeNetplan())

	content, err := file.Read(
		filepath.Join(b.chroot.RootDir(), "etc/netplan/01-network-manager-all.yaml"))
	require.NoError(t, err)
	assert.Contains(t, content, "renderer: NetworkManager")
	assert.Contains(t, content, "version: 2")
}

func TestTruncateMachineId(t *testing.T) {
	b := testBuilder(t)
	rootDir := b.chroot.RootDir()
	require.NoError(t, file.Write("cafecafecafecafe\n", filepath.Join(rootDir, "etc/machine-id")))
	require.NoError(t, file.Write("cafecafecafecafe\n", filepath.Join(rootDir, "var/lib/dbus/machine-id")))

	require.NoError(t, b.truncateMachineId())

	machineId, err := file.Read(filepath.Join(rootDir, "etc/machine-id"))
	require.NoError(t, err)
	assert.Empty(t, machineId)

	link, err := os.Readlink(filepath.Join(rootDir, "var/lib/dbus/machine-id"))
	require.NoError(t, err)
	assert.Equal(t, "/etc/machine-id", link)
}

func TestRemoveTemporaryFiles(t *testing.T) {
	b := testBuilder(t)
	rootDir := b.chroot.RootDir()
	require.NoError(t, file.Write("x", filepath.Join(rootDir, "tmp/leftover")))
	require.NoError(t, file.Write("x", filepath.Join(rootDir, "root/.bash_history")))
	require.NoError(t, file.Write("x", filepath.Join(rootDir, "root/.profile")))

	require.NoError(t, b.removeTemporaryFiles())

	_, err := os.Stat(filepath.Join(rootDir, "tmp/leftover"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(rootDir, "root/.bash_history"))
	assert.True(t, os.IsNotExist(err))

	// Unrelated files survive.
	_, err = os.Stat(filepath.Join(rootDir, "root/.profile"))
	assert.NoError(t, err)
}
