//go:build !linux

package file

import (
	"os"
)

var OPENFLAG = os.O_RDWR | os.O_CREATE
