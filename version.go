package ndns

// BuildNumber, BuildTime and BuildVersion are set via -ldflags at build
// time; left blank in a plain `go build`.
var (
	BuildNumber  string
	BuildTime    string
	BuildVersion string
)
