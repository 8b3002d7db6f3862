package main

import (
	"bufio"
	"os"
	"strings"
)

const (
	upMarker   = "-- +migrate Up"
	downMarker = "-- +migrate Down"
)

type migration struct {
	up   []string
	down []string
}

func load(path string) (migration, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return migration{}, err
	}
	return parse(string(content)), nil
}

// parse splits a file into its up and down statements. Text before any
// marker belongs to up. Statements end at a line containing ";".
func parse(text string) migration {
	var m migration
	var current strings.Builder
	target := &m.up
	flush := func() {
		if stmt := strings.TrimSpace(current.String()); stmt != "" {
			*target = append(*target, stmt)
		}
		current.Reset()
	}
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, upMarker):
			flush()
			target = &m.up
			continue
		case strings.HasPrefix(trimmed, downMarker):
			flush()
			target = &m.down
			continue
		case strings.HasPrefix(trimmed, "--"):
			continue
		}
		current.WriteString(line)
		current.WriteByte('\n')
		if strings.Contains(line, ";") {
			flush()
		}
	}
	flush()
	return m
}
