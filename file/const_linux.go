//go:build linux

package file

import (
	"os"
	"syscall"
)

/*
O_DIRECT is off: block buffers come from the Go heap and are not aligned,
and the block cache already keeps the hot blocks. O_SYNC REALLY lowers
performance, durability comes from Sync.
*/
var OPENFLAG = os.O_RDWR | os.O_CREATE | syscall.O_NOATIME
