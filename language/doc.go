// Package language holds the static table of supported languages.
//
// Each language maps to a Profile describing the container image that runs it,
// the command executed inside the container and the file name the submitted
// source must be written to. The table is versioned with the binary and is
// validated once when the package is initialised.
//
// Usage:
//
//	profile, err := language.Lookup("Python")
//	if errors.Is(err, language.ErrUnsupported) {
//	    // reject without provisioning anything
//	}
package language
