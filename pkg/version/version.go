package version

// Version is the current application version.
// Bumped manually on release.
const Version = "0.3.1"
