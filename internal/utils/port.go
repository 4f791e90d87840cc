package utils

import (
	"fmt"
	"net"
)

// FreePort asks the kernel for an available TCP port.
func FreePort() (int, error) {
	listener, err := net.Listen("tcp", ":0")
	if err != nil {
		return 0, fmt.Errorf("failed to find available port: %w", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port

	// Close the listener so the caller can bind it
	listener.Close()
	return port, nil
}
