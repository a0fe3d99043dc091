package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigbag/agro-fw-merge/internal/config"
	"github.com/bigbag/agro-fw-merge/internal/merge"
	"github.com/bigbag/agro-fw-merge/internal/ports"
)

// TestHelperProcess stands in for esptool when the test binary is re-executed.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("CMD_HELPER_PROCESS") != "1" {
		return
	}

	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) > 0 {
		args = args[1:]
	}

	if os.Getenv("CMD_HELPER_MODE") == "fail" {
		fmt.Fprintln(os.Stderr, "A fatal error occurred: Invalid head of packet")
		os.Exit(2)
	}

	for i := 0; i+1 < len(args); i++ {
		if args[i] == "-o" {
			if err := os.WriteFile(args[i+1], []byte("merged"), 0o644); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
		}
	}
	fmt.Println("Wrote 0x30000 bytes to file")
	os.Exit(0)
}

func useHelper(t *testing.T, mode string) {
	t.Helper()
	t.Setenv("CMD_HELPER_PROCESS", "1")
	t.Setenv("CMD_HELPER_MODE", mode)
}

func stubPorts(t *testing.T, list []ports.Port) {
	t.Helper()
	orig := listPorts
	listPorts = func() ([]ports.Port, error) { return list, nil }
	t.Cleanup(func() { listPorts = orig })
}

// newProject lays out a project with build outputs and writes a config file
// whose merge_tool re-executes this test binary. extra is appended verbatim.
func newProject(t *testing.T, extra string) (dir, buildDir string) {
	t.Helper()
	dir = t.TempDir()
	buildDir = filepath.Join(dir, ".pio", "build", "esp32dev")

	require.NoError(t, os.MkdirAll(buildDir, 0o755))
	for _, r := range merge.InputsFromBuildDir(buildDir).Regions() {
		require.NoError(t, os.WriteFile(r.Path, []byte{0xE9}, 0o644))
	}

	hcl := fmt.Sprintf("merge_tool = [%q, %q, %q]\n%s", os.Args[0], "-test.run=^TestHelperProcess$", "--", extra)
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), []byte(hcl), 0o644))
	return dir, buildDir
}

func writeHeader(t *testing.T, dir, content string) {
	t.Helper()
	path := filepath.Join(dir, "src", "core", "version.h")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func images(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "agro_fertilizer_fw_*.bin"))
	require.NoError(t, err)
	return matches
}

func TestMerge_Success(t *testing.T) {
	stubPorts(t, []ports.Port{{Name: "/dev/ttyUSB0", USB: true, VID: "10C4", PID: "EA60", Bridge: "CP210x"}})
	useHelper(t, "ok")
	dir, buildDir := newProject(t, "")
	writeHeader(t, dir, "#define FIRMWARE_VERSION \"1.0.0\"\n#define DEVICE_VERSION \"v2\"\n")

	out, _, err := execute(t, "merge", "-d", dir, "-b", buildDir, "--no-progress")
	require.NoError(t, err)

	got := images(t, dir)
	require.Len(t, got, 1)
	assert.Regexp(t, `agro_fertilizer_fw_v1\.0\.0_v2_\d{2}_\d{2}_\d{4}\.bin$`, got[0])
	assert.Contains(t, out, "Detected FIRMWARE_VERSION = 1.0.0")
	assert.Contains(t, out, "Combined binary created at: "+got[0])
	assert.Contains(t, out, "Detected CP210x on /dev/ttyUSB0, flash with:")
	assert.Contains(t, out, "write_flash 0x0 "+got[0])
}

func TestMerge_FailureWarnsByDefault(t *testing.T) {
	stubPorts(t, nil)
	useHelper(t, "fail")
	dir, buildDir := newProject(t, "")

	out, _, err := execute(t, "merge", "-d", dir, "-b", buildDir, "--no-progress")
	require.NoError(t, err)

	assert.Contains(t, out, "Warning: no image produced: merge_bin exited with status 2")
	assert.NotContains(t, out, "Combined binary created at")
	assert.Empty(t, images(t, dir))
}

func TestMerge_StrictFailureReturnsError(t *testing.T) {
	tests := []struct {
		name  string
		extra string
		args  []string
	}{
		{
			name: "flag",
			args: []string{"--strict"},
		},
		{
			name:  "config",
			extra: "strict = true\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stubPorts(t, nil)
			useHelper(t, "fail")
			dir, buildDir := newProject(t, tt.extra)

			args := append([]string{"merge", "-d", dir, "-b", buildDir, "--no-progress"}, tt.args...)
			out, _, err := execute(t, args...)
			require.Error(t, err)
			assert.ErrorContains(t, err, "merge failed: merge_bin exited with status 2")
			assert.NotContains(t, out, "Warning: no image produced")
		})
	}
}

func TestMerge_StrictFlagOverridesConfig(t *testing.T) {
	stubPorts(t, nil)
	useHelper(t, "fail")
	dir, buildDir := newProject(t, "strict = true\n")

	out, _, err := execute(t, "merge", "-d", dir, "-b", buildDir, "--no-progress", "--strict=false")
	require.NoError(t, err)
	assert.Contains(t, out, "Warning: no image produced")
}

func TestMerge_BuildDirFlagOverridesConfig(t *testing.T) {
	stubPorts(t, nil)
	useHelper(t, "ok")
	dir, buildDir := newProject(t, "build_dir = \"missing/build\"\n")

	t.Run("config only", func(t *testing.T) {
		out, _, err := execute(t, "merge", "-d", dir, "--no-progress")
		require.NoError(t, err)
		assert.Contains(t, out, "Warning: no image produced")
		assert.Contains(t, out, filepath.Join(dir, "missing", "build"))
		assert.Empty(t, images(t, dir))
	})

	t.Run("flag wins", func(t *testing.T) {
		out, _, err := execute(t, "merge", "-d", dir, "-b", buildDir, "--no-progress")
		require.NoError(t, err)
		assert.Contains(t, out, "Combined binary created at")
		assert.Len(t, images(t, dir), 1)
	})
}

func TestMerge_InvalidConfig(t *testing.T) {
	dir, buildDir := newProject(t, "log_format = \"xml\"\n")

	_, _, err := execute(t, "merge", "-d", dir, "-b", buildDir)
	require.Error(t, err)
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestName(t *testing.T) {
	dir, _ := newProject(t, "")
	writeHeader(t, dir, "#define FIRMWARE_VERSION \"1.0.0\"\n#define DEVICE_VERSION \"v2\"\n")

	out, _, err := execute(t, "name", "-d", dir)
	require.NoError(t, err)
	assert.Regexp(t, `^agro_fertilizer_fw_v1\.0\.0_v2_\d{2}_\d{2}_\d{4}\.bin\n$`, out)

	out, _, err = execute(t, "name", "-d", dir, "--path")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, filepath.Join(dir, "agro_fertilizer_fw_v1.0.0_v2_")), out)
}

func TestName_MissingHeader(t *testing.T) {
	dir, _ := newProject(t, "")

	out, errOut, err := execute(t, "name", "-d", dir)
	require.NoError(t, err)
	assert.Regexp(t, `^agro_fertilizer_fw_vunknown_unknown_`, out)
	assert.Contains(t, errOut, "Could not read FIRMWARE_VERSION from header")
}

func TestClean(t *testing.T) {
	dir, _ := newProject(t, "")
	for _, name := range []string{"agro_fertilizer_fw_v1_a_01_01_2024.bin", "agro_fertilizer_fw_v2_b_02_02_2024.bin"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "agro_fertilizer_fw_old.bin"), 0o755))

	out, _, err := execute(t, "clean", "-d", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 2 of 2 stale image(s)")
	assert.Contains(t, out, "Warning: skipped directory "+filepath.Join(dir, "agro_fertilizer_fw_old.bin"))
	assert.DirExists(t, filepath.Join(dir, "agro_fertilizer_fw_old.bin"))
}

func TestPorts(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		stubPorts(t, nil)
		out, _, err := execute(t, "ports")
		require.NoError(t, err)
		assert.Equal(t, "No serial ports found\n", out)
	})

	t.Run("listed", func(t *testing.T) {
		stubPorts(t, []ports.Port{
			{Name: "/dev/ttyS0"},
			{Name: "/dev/ttyUSB0", USB: true, VID: "1A86", PID: "7523", Bridge: "CH340"},
		})
		out, _, err := execute(t, "ports")
		require.NoError(t, err)
		assert.Contains(t, out, "/dev/ttyS0")
		assert.Contains(t, out, "1A86:7523")
		assert.Contains(t, out, "CH340")
	})
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "agro-fw-merge dev")
	assert.Contains(t, out, "commit: none")
}

func TestNewSpinner(t *testing.T) {
	var buf bytes.Buffer
	s := newSpinner(&buf, "Merging binaries...")
	assert.Equal(t, " Merging binaries...", s.Suffix)

	var ind merge.Indicator = s
	ind.Start()
	ind.Stop()
}

func TestIsTerminal(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer f.Close()

	assert.False(t, isTerminal(f))
}
