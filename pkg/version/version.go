package version

// Version is overridden at build time with -ldflags "-X hexentour/pkg/version.Version=...".
var Version = "v0.1.0"
