package worker

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ReadClaimsFromFile reads claims from a file (one per line). "-" reads stdin.
func ReadClaimsFromFile(filePath string) ([]string, error) {
	if filePath == "-" {
		return ReadClaims(os.Stdin)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return ReadClaims(file)
}

// ReadClaims reads one claim per line, skipping blank lines and # comments.
// Repeated lines are kept; suppressing them is the deduplicator's job.
func ReadClaims(r io.Reader) ([]string, error) {
	var claims []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		claims = append(claims, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return claims, nil
}
