// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Command keyzero is a static check over the key-handling packages. It
// reports functions that touch private key material without zeroing it, and
// any use of math/rand in those packages.
//
// Usage: keyzero <repo-root>
package main

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Directories to scan (relative to repo root)
var targetDirs = []string{
	"internal/derivation",
	"internal/crypto",
	"internal/mnemonic",
	"internal/engine",
}

// keyParams are parameter names that carry a raw private key.
var keyParams = map[string]bool{
	"priv":   true,
	"parent": true,
}

// keyFields are struct fields holding key material.
var keyFields = map[string]bool{
	"scratch": true,
	"seed":    true,
}

// keyLocals are local variables holding derived key material.
var keyLocals = map[string]bool{
	"node":   true,
	"key":    true,
	"seed":   true,
	"phrase": true,
}

// wipers are the calls that count as zeroing.
var wipers = map[string]bool{
	"ZeroBytes": true,
	"wipeInt":   true,
	"Zero":      true,
	"Destroy":   true,
	"clear":     true,
}

// Functions allowed to touch key material without zeroing, and why.
var exempt = map[string]string{
	"p256Ops.publicKey":             "crypto/ecdh keys are opaque and cannot be wiped",
	"NewSeedOracle":                 "copies the seed into storage released by Destroy",
	"Deriver.load":                  "fills the deriver scratch; Derive and Sign zero it",
	"BIP39Handler.GenerateMnemonic": "returns seed and entropy to the caller, which zeroes them",
	"BIP39Handler.SeedFromMnemonic": "returns the seed to the caller, which zeroes it",
}

var insecureRand = map[string]bool{
	"math/rand":    true,
	"math/rand/v2": true,
}

type finding struct {
	pos    token.Position
	fn     string
	reason string
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: keyzero <repo-root>")
		os.Exit(1)
	}
	root := os.Args[1]

	fset := token.NewFileSet()
	var findings []finding
	files := 0
	for _, dir := range targetDirs {
		matches, err := filepath.Glob(filepath.Join(root, dir, "*.go"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error scanning %s: %v\n", dir, err)
			continue
		}
		for _, path := range matches {
			if strings.HasSuffix(path, "_test.go") {
				continue
			}
			f, err := parser.ParseFile(fset, path, nil, 0)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error parsing %s: %v\n", path, err)
				os.Exit(2)
			}
			files++
			findings = append(findings, checkFile(fset, f)...)
		}
	}

	fmt.Printf("Key Zeroing Analysis\n")
	fmt.Printf("====================\n")
	fmt.Printf("Files checked: %d\n\n", files)

	if len(findings) == 0 {
		fmt.Println("No issues found.")
		return
	}

	sort.Slice(findings, func(i, j int) bool {
		if findings[i].pos.Filename != findings[j].pos.Filename {
			return findings[i].pos.Filename < findings[j].pos.Filename
		}
		return findings[i].pos.Line < findings[j].pos.Line
	})
	fmt.Printf("Potential issues: %d\n\n", len(findings))
	for _, f := range findings {
		fmt.Printf("%s\n", f.pos)
		if f.fn != "" {
			fmt.Printf("  Function: %s\n", f.fn)
		}
		fmt.Printf("  Issue: %s\n\n", f.reason)
	}
	os.Exit(1)
}

func checkFile(fset *token.FileSet, f *ast.File) []finding {
	var out []finding
	for _, imp := range f.Imports {
		path, _ := strconv.Unquote(imp.Path.Value)
		if insecureRand[path] {
			out = append(out, finding{
				pos:    fset.Position(imp.Pos()),
				reason: fmt.Sprintf("imports %s in a key-handling package; use crypto/rand", path),
			})
		}
	}

	for _, decl := range f.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Body == nil {
			continue
		}
		name := funcName(fn)
		if _, ok := exempt[name]; ok {
			continue
		}
		ref, found := keyReference(fn)
		if !found || wipes(fn.Body) {
			continue
		}
		out = append(out, finding{
			pos:    fset.Position(ref),
			fn:     name,
			reason: "key material referenced but never zeroed in this function",
		})
	}
	return out
}

// funcName renders methods as Recv.Name.
func funcName(fn *ast.FuncDecl) string {
	if fn.Recv == nil || len(fn.Recv.List) == 0 {
		return fn.Name.Name
	}
	t := fn.Recv.List[0].Type
	if star, ok := t.(*ast.StarExpr); ok {
		t = star.X
	}
	if id, ok := t.(*ast.Ident); ok {
		return id.Name + "." + fn.Name.Name
	}
	return fn.Name.Name
}

// keyReference returns the first place fn touches key material.
func keyReference(fn *ast.FuncDecl) (token.Pos, bool) {
	for _, field := range fn.Type.Params.List {
		for _, n := range field.Names {
			if keyParams[n.Name] {
				return n.Pos(), true
			}
		}
	}

	var pos token.Pos
	ast.Inspect(fn.Body, func(n ast.Node) bool {
		if pos.IsValid() {
			return false
		}
		switch n := n.(type) {
		case *ast.SelectorExpr:
			if keyFields[n.Sel.Name] {
				pos = n.Pos()
			}
		case *ast.AssignStmt:
			if n.Tok != token.DEFINE {
				break
			}
			for _, lhs := range n.Lhs {
				if id, ok := lhs.(*ast.Ident); ok && keyLocals[id.Name] {
					pos = id.Pos()
				}
			}
		case *ast.ValueSpec:
			for _, id := range n.Names {
				if keyLocals[id.Name] {
					pos = id.Pos()
				}
			}
		}
		return true
	})
	return pos, pos.IsValid()
}

// wipes reports whether body calls any wiper, directly or deferred.
func wipes(body *ast.BlockStmt) bool {
	found := false
	ast.Inspect(body, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok || found {
			return !found
		}
		switch fun := call.Fun.(type) {
		case *ast.Ident:
			found = wipers[fun.Name]
		case *ast.SelectorExpr:
			found = wipers[fun.Sel.Name]
		}
		return !found
	})
	return found
}
