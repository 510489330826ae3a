package version

// Version is the current edumap version. Override at build time with:
//
//	go build -ldflags "-X github.com/vanderheijden86/edumap/pkg/version.Version=v0.2.0"
var Version = "v0.1.0"
