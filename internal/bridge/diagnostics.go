package bridge

import (
	"bufio"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// benignMarkers are progress messages the binary prints on every run.
var benignMarkers = []string{
	"resizeImg",
	"Decoded image format",
	"Reading image data from stdin",
}

// IsBenign reports whether a stderr line is routine progress output.
func IsBenign(line string) bool {
	for _, m := range benignMarkers {
		if strings.Contains(line, m) {
			return true
		}
	}
	return false
}

// logDiagnostics drains r line by line. Benign lines go to debug, the rest
// to warn. It returns the number of unexpected lines seen.
func logDiagnostics(r io.Reader, log logrus.FieldLogger) int {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)

	unexpected := 0
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if IsBenign(line) {
			log.Debug(line)
			continue
		}
		unexpected++
		log.Warn(line)
	}
	if err := sc.Err(); err != nil {
		log.WithError(err).Warn("reading stderr")
		// keep the pipe drained so the child never blocks on a full buffer
		_, _ = io.Copy(io.Discard, r)
	}
	return unexpected
}
