// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// configdoc prints the configuration reference for tzsignerd as markdown.
// Field rows come from the yaml, description and default tags of
// util.ServerConfig, so the document cannot drift from the code.
//
//	go run ./cmd/configdoc -o doc/CONFIG_REFERENCE.md
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/aplane-algo/tzsigner/internal/util"
)

type envVar struct {
	name, usedBy, desc string
}

var envVars = []envVar{
	{util.DataDirEnv, "tzsignerd, tzapprover, tzclient, tzstore", "Data directory (config, seed file, sockets)"},
	{"TZSIGNER_PASSPHRASE", "tzsignerd", "Seed passphrase for automated testing (skips the prompt)"},
	{"TZSIGNER_DEBUG", "all", "Set to any value to force debug logging"},
	{"DISABLE_MEMORY_LOCK", "tzsignerd", "Set to any value to skip mlockall (debugging only)"},
	{"CREDENTIALS_DIRECTORY", "tzpass", "Set by systemd LoadCredentialEncrypted; read by the systemd-creds backend"},
}

// field is one documented config key.
type field struct {
	key, typ, def, desc string
}

func main() {
	out := flag.String("o", "", "Write to file instead of stdout")
	flag.Parse()

	w := io.Writer(os.Stdout)
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			fmt.Fprintf(os.Stderr, "configdoc: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		w = f
	}

	bw := bufio.NewWriter(w)
	writeReference(bw)
	if err := bw.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "configdoc: %v\n", err)
		os.Exit(1)
	}
}

func writeReference(w io.Writer) {
	p := func(format string, args ...any) { fmt.Fprintf(w, format+"\n", args...) }

	p("# Configuration Reference\n")
	p("Generated by `configdoc`; edit the struct tags in `internal/util/serverconfig.go` instead.\n")
	p("## config.yaml\n")
	p("Read from `%s` in the data directory (`-d` or `%s`). Relative paths resolve against the data directory.", util.ConfigFileName, util.DataDirEnv)
	p("Unknown keys are rejected. `auto_approve_sign` and `policy_script` reload while tzsignerd runs; everything else needs a restart.\n")

	rows := [][]string{}
	for _, f := range configFields(reflect.TypeOf(util.ServerConfig{})) {
		rows = append(rows, []string{"`" + f.key + "`", f.typ, "`" + f.def + "`", f.desc})
	}
	writeTable(w, []string{"Key", "Type", "Default", "Description"}, rows)

	p("\n## Environment\n")
	rows = rows[:0]
	for _, e := range envVars {
		rows = append(rows, []string{"`" + e.name + "`", e.desc, e.usedBy})
	}
	writeTable(w, []string{"Variable", "Description", "Used by"}, rows)

	p("\nThe seed passphrase is taken from, in order: `TZSIGNER_PASSPHRASE`, `passphrase_command_argv` (see tzpass), the terminal.")
}

// configFields lists the yaml-tagged fields of t in declaration order.
func configFields(t reflect.Type) []field {
	var fields []field
	for i := range t.NumField() {
		sf := t.Field(i)
		key, _, _ := strings.Cut(sf.Tag.Get("yaml"), ",")
		if key == "" || key == "-" {
			continue
		}
		f := field{
			key:  key,
			typ:  typeName(sf.Type),
			def:  sf.Tag.Get("default"),
			desc: sf.Tag.Get("description"),
		}
		if f.def == "" {
			f.def = "(none)"
		}
		if f.desc == "" {
			f.desc = "(no description)"
		}
		fields = append(fields, f)
	}
	return fields
}

func typeName(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Slice:
		return "[]" + typeName(t.Elem())
	case reflect.Map:
		return "map[" + typeName(t.Key()) + "]" + typeName(t.Elem())
	case reflect.Pointer:
		return "*" + typeName(t.Elem())
	}
	return t.Kind().String()
}

func writeTable(w io.Writer, header []string, rows [][]string) {
	line := func(cells []string) { fmt.Fprintf(w, "| %s |\n", strings.Join(cells, " | ")) }
	line(header)
	sep := make([]string, len(header))
	for i := range sep {
		sep[i] = "---"
	}
	line(sep)
	for _, r := range rows {
		line(r)
	}
}
