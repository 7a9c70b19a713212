//go:build !unix

package runner

import "os"

func signalName(*os.ProcessState) (string, bool) {
	return "", false
}
