package main

var (
	gitSHA1   string = "unknown"
	gitDirty  string = "unknown"
	buildID   string = "unknown"
	buildDate string = "unknown"
)

// Version is filled in at link time with
// -ldflags "-X main.gitSHA1=... -X main.gitDirty=... -X main.buildID=... -X main.buildDate=...".
func Version() string {
	v := "hevent " + gitSHA1
	if gitDirty != "unknown" && gitDirty != "0" {
		v += "-dirty"
	}
	return v + " build " + buildID + " " + buildDate
}
