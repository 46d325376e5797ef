package state

import "path/filepath"

type Paths struct {
	DB    string
	Store string
	Blobs string
	State string
	Tmp   string
	Logs  string
	Crash string // crash dumps written on abort
	Abort string // machine-readable exit requests referencing crash dumps
}

func PathsFor(dbPath string) Paths {
	statePath := filepath.Join(dbPath, "state")
	return Paths{
		// base
		DB: dbPath,

		// mains
		Store: filepath.Join(dbPath, "store"),
		Blobs: filepath.Join(dbPath, "blobs"),

		// state
		State: statePath,
		Tmp:   filepath.Join(statePath, "tmp"),
		Logs:  filepath.Join(statePath, "logs"),
		Crash: filepath.Join(statePath, "crash"),
		Abort: filepath.Join(statePath, "abort"),
	}
}

// Convenience helpers
func StorePath(dbPath string) string { return PathsFor(dbPath).Store }
func BlobsPath(dbPath string) string { return PathsFor(dbPath).Blobs }
func StatePath(dbPath string) string { return PathsFor(dbPath).State }
func LogsPath(dbPath string) string  { return PathsFor(dbPath).Logs }
func CrashPath(dbPath string) string { return PathsFor(dbPath).Crash }
