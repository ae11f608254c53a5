// Package workspace provides single-use staging directories for submitted code.
//
// A Workspace is created per run, holds exactly one source file, is bound
// read-write into the execution container and is removed when the run ends.
//
// Usage:
//
//	ws, err := workspace.Create(workspace.RealFileSystem{}, "")
//	if err != nil {
//	    return err
//	}
//	defer ws.Release()
//	err = ws.Write("script.py", code)
package workspace
