package textpack

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

const (
	kiB = 1024
	miB = 1024 * kiB
)

// InitLog sets up logrus the way every textpack command wants it:
// DEBUG=1 turns on debug output, and each line carries its caller and
// goroutine id.
func InitLog() {
	debug := os.Getenv("DEBUG")
	if debug == "1" {
		log.SetLevel(log.DebugLevel)
	}
	log.SetReportCaller(true)
	formatter := &log.TextFormatter{
		CallerPrettyfier: caller(),
		FieldMap: log.FieldMap{
			log.FieldKeyFile: "caller",
		},
	}
	formatter.TimestampFormat = "15:04:05.999999999"
	log.SetFormatter(formatter)
}

// srcroot is the directory holding this package's source, so caller
// paths print relative to the repo no matter where a command runs.
var srcroot = func() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return ""
	}
	return filepath.Dir(file) + "/"
}()

// caller formats the logrus caller field as "file.go:line gid N", with
// file relative to the repo when it is inside it.
func caller() func(*runtime.Frame) (function string, file string) {
	return func(f *runtime.Frame) (function string, file string) {
		return "", fmt.Sprintf("%s:%d gid %d", strings.TrimPrefix(f.File, srcroot), f.Line, GetGID())
	}
}

// GetGID returns the goroutine ID of its calling function, for logging
// purposes.  The first line of a stack dump reads "goroutine N [...]".
func GetGID() uint64 {
	buf := make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]
	fields := bytes.Fields(buf)
	if len(fields) < 2 {
		return 0
	}
	n, _ := strconv.ParseUint(string(fields[1]), 10, 64)
	return n
}
