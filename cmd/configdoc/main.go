// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// configdoc generates markdown documentation from Go struct tags.
// Usage: go run ./cmd/configdoc > doc/CONFIG_REFERENCE.md
package main

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/aplane-algo/jsguard/internal/policy"
	"github.com/aplane-algo/jsguard/internal/util"
)

// EnvVar represents an environment variable configuration
type EnvVar struct {
	Name        string
	Description string
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "--help" {
		fmt.Println("Usage: go run ./cmd/configdoc > doc/CONFIG_REFERENCE.md")
		fmt.Println()
		fmt.Println("Generates markdown documentation from Go struct tags.")
		return
	}
	writeReference(os.Stdout)
}

func writeReference(w io.Writer) {
	p := func(format string, args ...any) { _, _ = fmt.Fprintf(w, format, args...) }

	p("# Configuration Reference\n\n")
	p("Auto-generated from Go struct tags. Do not edit manually.\n\n")
	p("---\n\n")

	p("## jsguard Configuration\n\n")
	p("File: `config.yaml` in the data directory (`-d`, `JSGUARD_DATA` or `~/.jsguard`)\n\n")
	printStructTable(w, reflect.TypeOf(util.Config{}), "")
	p("\n")

	p("## Policy File\n\n")
	p("File: `policy_file` from config.yaml, or `-policy`. Rules apply in order:\n")
	p("flagged request, size limit, allow patterns, deny patterns, default.\n\n")
	printStructTable(w, reflect.TypeOf(policy.Document{}), "")
	p("\n")

	p("## Environment Variables\n\n")
	printEnvVars(w)
}

func printStructTable(w io.Writer, t reflect.Type, prefix string) {
	if prefix == "" {
		_, _ = fmt.Fprintln(w, "| Field | Type | Default | Description |")
		_, _ = fmt.Fprintln(w, "|-------|------|---------|-------------|")
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		tag := field.Tag.Get("yaml")
		if tag == "" || tag == "-" {
			continue
		}
		// Handle tag options like "omitempty"
		fieldName := strings.Split(tag, ",")[0]
		if prefix != "" {
			fieldName = prefix + "." + fieldName
		}

		desc := field.Tag.Get("description")

		// Nested config blocks are listed, then expanded with a dotted prefix
		nested := field.Type
		if nested.Kind() == reflect.Ptr && nested.Elem().Kind() == reflect.Struct {
			nested = nested.Elem()
		}
		if nested.Kind() == reflect.Struct {
			if desc == "" {
				desc = "(nested config block)"
			}
			_, _ = fmt.Fprintf(w, "| `%s` | object | (none) | %s |\n", fieldName, desc)
			printStructTable(w, nested, fieldName)
			continue
		}

		if desc == "" {
			desc = "(no description)"
		}

		def := field.Tag.Get("default")
		switch def {
		case "":
			def = "(none)"
		case `""`:
			def = "(empty string)"
		}

		_, _ = fmt.Fprintf(w, "| `%s` | %s | `%s` | %s |\n", fieldName, formatType(field.Type), def, desc)
	}
}

func formatType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "int"
	case reflect.Bool:
		return "bool"
	case reflect.Slice:
		return "[]" + formatType(t.Elem())
	case reflect.Ptr:
		return "*" + formatType(t.Elem())
	default:
		return t.String()
	}
}

func printEnvVars(w io.Writer) {
	envVars := []EnvVar{
		{"JSGUARD_DATA", "Data directory (config.yaml, policy.yaml, audit.db, history)"},
		{"JSGUARD_DEBUG", "Set to any value to enable debug logging, including allowed verdicts"},
		{"NO_COLOR", "Disable colored output"},
	}

	_, _ = fmt.Fprintln(w, "| Variable | Description |")
	_, _ = fmt.Fprintln(w, "|----------|-------------|")
	for _, env := range envVars {
		_, _ = fmt.Fprintf(w, "| `%s` | %s |\n", env.Name, env.Description)
	}
}
