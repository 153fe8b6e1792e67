package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaco00/media-transcode/config"
	"github.com/jaco00/media-transcode/core/catalog"
	"github.com/jaco00/media-transcode/core/scan"
	"github.com/jaco00/media-transcode/core/task"
)

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"CRF=23", "quality=90", "preset=slow"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"crf": "23", "quality": "90", "preset": "slow"}, params)

	params, err = parseParams(nil)
	require.NoError(t, err)
	assert.Nil(t, params)

	_, err = parseParams([]string{"novalue"})
	assert.ErrorIs(t, err, config.ErrInvalid)

	_, err = parseParams([]string{"=x"})
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tools.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"image_output_ext": ".avif",
		"video_output_ext": ".h265.mp4",
		"tools": [
			{"name": "avifenc", "category": "image", "formats": ["jpg", "png"], "priority": 1,
			 "command": ["avifenc", "$IN$", "$OUT$"]},
			{"name": "ffmpeg-x265", "category": "video", "formats": ["mp4", "mov"], "priority": 1,
			 "command": ["ffmpeg", "-i", "$IN$", "$OUT$"]}
		]
	}`), 0o644))
	cat, err := catalog.Load(path)
	require.NoError(t, err)
	return cat
}

func TestScanOptionsMediaFilter(t *testing.T) {
	cat := testCatalog(t)

	full := config.Default()
	opts := scanOptions(full, cat)
	assert.Contains(t, opts.ImageExts, ".jpg")
	assert.Contains(t, opts.VideoExts, ".mov")
	assert.Equal(t, ".avif", opts.ImageOutputExt)
	assert.Equal(t, ".h265.mp4", opts.VideoOutputExt)

	imgOnly := config.Default()
	imgOnly.Run.Media = config.MediaImage
	opts = scanOptions(imgOnly, cat)
	assert.NotEmpty(t, opts.ImageExts)
	assert.Empty(t, opts.VideoExts)
	assert.Empty(t, opts.VideoOutputExt, "filtered category must vanish entirely")

	vidOnly := config.Default()
	vidOnly.Run.Media = config.MediaVideo
	opts = scanOptions(vidOnly, cat)
	assert.Empty(t, opts.ImageExts)
	assert.Empty(t, opts.ImageOutputExt)
	assert.NotEmpty(t, opts.VideoExts)
}

func TestScanOptionsExcludesBackupDir(t *testing.T) {
	cat := testCatalog(t)
	cfg := config.Default()
	cfg.Run.BackupDir = filepath.Join(t.TempDir(), "backup")

	opts := scanOptions(cfg, cat)
	found := false
	for _, d := range opts.ExcludeDirs {
		if d == cfg.Run.BackupDir {
			found = true
		}
	}
	assert.True(t, found, "backup dir must be excluded from scanning: %v", opts.ExcludeDirs)
}

func TestPlanLines(t *testing.T) {
	tasks := []task.Task{
		{
			RelPath:         "pics/a.jpg",
			FinalOutputPath: "/x/pics/a.avif",
			Commands: []task.ResolvedCommand{
				{Tool: "avifenc"}, {Tool: "nconvert"},
			},
		},
		{RelPath: "b.png", FinalOutputPath: "/x/b.avif"},
	}
	lines := planLines(tasks)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "pics/a.jpg")
	assert.Contains(t, lines[0], "a.avif")
	assert.Contains(t, lines[0], "avifenc, nconvert")
	assert.Contains(t, lines[1], "no usable tool")
}

func TestRelKey(t *testing.T) {
	assert.Equal(t, "sub/name", relKey("/root", "/root/sub/name"))
	assert.Equal(t, "/elsewhere/name", relKey("/root", "/elsewhere/name"))
}

func TestEntrySize(t *testing.T) {
	f := &scan.MediaFile{}
	e := &scan.MatchEntry{Original: f, DupOriginals: []*scan.MediaFile{f, f}}
	assert.Equal(t, 3, entrySize(e))
}

// chdir moves the process into dir for one test. The command loads
// config and writes logs relative to the working directory.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

// writeFakeEncoder creates a script that satisfies the version probe
// and otherwise copies its input to its output.
func writeFakeEncoder(t *testing.T, dir string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fakes need a POSIX shell")
	}
	path := filepath.Join(dir, "fakeenc")
	script := "#!/bin/sh\n" +
		"[ \"$1\" = \"-version\" ] && exit 0\n" +
		"[ \"$1\" = \"--version\" ] && exit 0\n" +
		"cat \"$1\" > \"$2\"\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func writeCatalogFile(t *testing.T, dir, encoderPath string) string {
	t.Helper()
	path := filepath.Join(dir, "tools.json")
	body := fmt.Sprintf(`{
		"image_output_ext": ".avif",
		"tools": [
			{"name": "fakeenc", "category": "image", "formats": ["jpg"], "priority": 1,
			 "command": [%q, "$IN$", "$OUT$"]}
		]
	}`, encoderPath)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRunCommandDryRun(t *testing.T) {
	work := t.TempDir()
	chdir(t, work)

	encoder := writeFakeEncoder(t, work)
	catalogPath := writeCatalogFile(t, work, encoder)

	media := filepath.Join(work, "media")
	require.NoError(t, os.MkdirAll(media, 0o755))
	src := filepath.Join(media, "photo.jpg")
	require.NoError(t, os.WriteFile(src, []byte("original image payload"), 0o644))

	rootCmd.SetArgs([]string{"run", media, "--dry-run", "--tools", catalogPath, "--yes"})
	require.NoError(t, rootCmd.Execute())

	// Plan only: the source is untouched and nothing was produced.
	_, err := os.Stat(src)
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(media, "photo.avif"))
	assert.True(t, os.IsNotExist(err), "dry run must not convert")
}

func TestRunCommandConvertsEndToEnd(t *testing.T) {
	work := t.TempDir()
	chdir(t, work)

	encoder := writeFakeEncoder(t, work)
	catalogPath := writeCatalogFile(t, work, encoder)

	media := filepath.Join(work, "media")
	require.NoError(t, os.MkdirAll(media, 0o755))
	src := filepath.Join(media, "photo.jpg")
	require.NoError(t, os.WriteFile(src, []byte("original image payload"), 0o644))

	// Already-converted pair: must be left alone.
	done := filepath.Join(media, "done.jpg")
	require.NoError(t, os.WriteFile(done, []byte("already handled file"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(media, "done.avif"), []byte("its output data"), 0o644))

	rootCmd.SetArgs([]string{"run", media, "--tools", catalogPath, "--yes", "--dry-run=false"})
	require.NoError(t, rootCmd.Execute())

	out, err := os.ReadFile(filepath.Join(media, "photo.avif"))
	require.NoError(t, err, "conversion output missing")
	assert.Equal(t, "original image payload", string(out))

	// Default mode keeps the source.
	_, err = os.Stat(src)
	assert.NoError(t, err)

	// The matched pair was not reprocessed.
	data, err := os.ReadFile(filepath.Join(media, "done.avif"))
	require.NoError(t, err)
	assert.Equal(t, "its output data", string(data))

	// No temp files left behind.
	entries, err := os.ReadDir(media)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-", "stray temp file %s", e.Name())
	}
}

func TestToolsCommand(t *testing.T) {
	work := t.TempDir()
	chdir(t, work)

	encoder := writeFakeEncoder(t, work)
	catalogPath := writeCatalogFile(t, work, encoder)

	rootCmd.SetArgs([]string{"tools", "--tools", catalogPath})
	require.NoError(t, rootCmd.Execute())
}
