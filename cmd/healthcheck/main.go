// Package main implements the container health probe. It is built as a
// static binary so the scratch image can run it where no shell, curl or
// wget exists.
package main

import (
	"fmt"
	"net/http"
	"os"
	"time"
)

func main() {
	if err := probe(healthURL(), 5*time.Second); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// healthURL derives the liveness endpoint from the same PORT variable the
// server reads, so the probe follows any port override.
func healthURL() string {
	port := os.Getenv("PORT")
	if port == "" {
		port = "3001"
	}
	return "http://localhost:" + port + "/health"
}

// probe performs one GET against the health endpoint. Any transport failure
// or non-200 status is reported as an error.
func probe(url string, timeout time.Duration) error {
	client := &http.Client{Timeout: timeout}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health probe failed: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health probe returned status %d", resp.StatusCode)
	}
	return nil
}
