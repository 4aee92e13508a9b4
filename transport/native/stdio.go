package native

import (
	"os"

	"github.com/supportcompanion/companion/internal/runtime/wire"
)

type processStdio struct{}

func (processStdio) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (processStdio) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
func (processStdio) Close() error                { return nil }

// Stdio frames the current process's stdin and stdout. Host-side programs
// pass it to call.Serve to answer the browser side of the channel.
func Stdio() wire.Conn {
	return wire.NewStreamConn(processStdio{})
}
