package executor

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/h2non/filetype"

	"github.com/jaco00/media-transcode/core/catalog"
)

var errEmptyOutput = errors.New("tool exited 0 but produced no output")

// verifyOutput sniffs the output's magic bytes and rejects files whose
// detected family does not match the task's media type. Opt-in: some
// exotic but valid outputs are unknown to the sniffer.
func verifyOutput(path string, mediaType catalog.Category) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	header := make([]byte, 261)
	n, err := f.Read(header)
	if err != nil && err != io.EOF {
		return fmt.Errorf("read output header: %w", err)
	}
	header = header[:n]

	kind, _ := filetype.Match(header)
	switch mediaType {
	case catalog.Image:
		if !filetype.IsImage(header) {
			return fmt.Errorf("output is not an image (detected %q)", kind.MIME.Value)
		}
	case catalog.Video:
		if !filetype.IsVideo(header) {
			return fmt.Errorf("output is not a video (detected %q)", kind.MIME.Value)
		}
	}
	return nil
}
