package services

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ReadLocatorFile reads one locator per line. Blank lines and lines starting
// with # are ignored.
func ReadLocatorFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open locator list: %w", err)
	}
	defer f.Close()
	return ParseLocators(f)
}

func ParseLocators(r io.Reader) ([]string, error) {
	var locators []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		locators = append(locators, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read locator list: %w", err)
	}
	return locators, nil
}
