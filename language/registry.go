package language

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// MountPath is where the workspace is bound inside every container.
const MountPath = "/usr/src/app"

// ErrUnsupported is returned by Lookup for identifiers outside the table.
var ErrUnsupported = errors.New("unsupported language")

// ID is a canonical language identifier.
type ID string

// Supported languages
const (
	Python     ID = "python"
	JavaScript ID = "javascript"
	TypeScript ID = "typescript"
	Java       ID = "java"
	C          ID = "c"
	CPP        ID = "cpp"
)

// Profile describes how one language is executed.
type Profile struct {
	ID         ID
	Image      string
	Command    string
	SourceFile string
	// Compiled marks composite build-then-run commands. A failing build step
	// short-circuits the run step and its diagnostics land in the output.
	Compiled bool
}

// ids is the closed set of languages; every entry must have a profile.
var ids = []ID{Python, JavaScript, TypeScript, Java, C, CPP}

var profiles = map[ID]Profile{
	Python: {
		Image:      "python:3.10-slim",
		Command:    "python " + MountPath + "/script.py",
		SourceFile: "script.py",
	},
	JavaScript: {
		Image:      "node:20",
		Command:    "node " + MountPath + "/script.js",
		SourceFile: "script.js",
	},
	TypeScript: {
		// No network inside the sandbox, so the compiler cannot be fetched at
		// run time; node strips the type annotations itself.
		Image:      "node:22-slim",
		Command:    "node --experimental-strip-types --no-warnings " + MountPath + "/script.ts",
		SourceFile: "script.ts",
	},
	Java: {
		Image:      "eclipse-temurin:17-jdk",
		Command:    "sh -c 'javac " + MountPath + "/Main.java && java -cp " + MountPath + " Main'",
		SourceFile: "Main.java",
		Compiled:   true,
	},
	C: {
		Image:      "gcc:13",
		Command:    "sh -c 'gcc " + MountPath + "/main.c -o " + MountPath + "/main && " + MountPath + "/main'",
		SourceFile: "main.c",
		Compiled:   true,
	},
	CPP: {
		Image:      "gcc:13",
		Command:    "sh -c 'g++ " + MountPath + "/main.cpp -o " + MountPath + "/main && " + MountPath + "/main'",
		SourceFile: "main.cpp",
		Compiled:   true,
	},
}

var aliases = map[string]ID{
	"py":     Python,
	"js":     JavaScript,
	"node":   JavaScript,
	"nodejs": JavaScript,
	"ts":     TypeScript,
	"c++":    CPP,
}

func init() {
	if err := Validate(); err != nil {
		panic(err)
	}
}

// Validate checks that every known ID has a complete profile and that no
// profile or alias points outside the closed set.
func Validate() error {
	known := make(map[ID]bool, len(ids))
	for _, id := range ids {
		known[id] = true
		p, ok := profiles[id]
		if !ok {
			return fmt.Errorf("language %q has no profile", id)
		}
		if p.Image == "" || p.Command == "" || p.SourceFile == "" {
			return fmt.Errorf("language %q has an incomplete profile", id)
		}
		if strings.ContainsAny(p.SourceFile, `/\`) {
			return fmt.Errorf("language %q source file %q must be a bare file name", id, p.SourceFile)
		}
	}
	for id := range profiles {
		if !known[id] {
			return fmt.Errorf("profile for unknown language %q", id)
		}
	}
	for alias, id := range aliases {
		if !known[id] {
			return fmt.Errorf("alias %q points to unknown language %q", alias, id)
		}
	}
	return nil
}

// Normalize lowercases and trims a user-supplied identifier.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Lookup resolves a language identifier, case-insensitively, to its profile.
func Lookup(name string) (Profile, error) {
	key := Normalize(name)
	id := ID(key)
	if canonical, ok := aliases[key]; ok {
		id = canonical
	}
	p, ok := profiles[id]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %s", ErrUnsupported, name)
	}
	p.ID = id
	return p, nil
}

// All returns every profile ordered by ID.
func All() []Profile {
	out := make([]Profile, 0, len(ids))
	for _, id := range ids {
		p := profiles[id]
		p.ID = id
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Names returns the canonical identifiers ordered alphabetically.
func Names() []string {
	all := All()
	names := make([]string, len(all))
	for i, p := range all {
		names[i] = string(p.ID)
	}
	return names
}
