package version

import "runtime/debug"

var (
    // Version is set via ldflags at build time. Fallback to dev.
    Version = "dev"
    // Commit is the VCS revision, set via ldflags.
    Commit  = ""
    // Date is the build timestamp in RFC3339, set via ldflags.
    Date    = ""
)

// String renders the version for --version output and the service health check.
func String() string {
    s := Version
    if s == "dev" {
        if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
            s = bi.Main.Version
        }
    }
    if Commit != "" { s += "+" + Commit }
    if Date != "" { s += " (" + Date + ")" }
    return s
}
