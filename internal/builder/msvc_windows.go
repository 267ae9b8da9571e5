//go:build windows

package builder

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/heaths/go-vssetup"
)

// findMSVC looks for cl.exe in the Visual Studio installations known to the
// setup configuration API
func findMSVC() string {
	instances, err := vssetup.Instances(false)
	if err != nil {
		return ""
	}

	for _, instance := range instances {
		installPath, err := instance.InstallationPath()
		if err != nil {
			continue
		}

		versionFile := filepath.Join(installPath, "VC", "Auxiliary", "Build", "Microsoft.VCToolsVersion.default.txt")
		data, err := os.ReadFile(versionFile)
		if err != nil {
			continue
		}

		cl := filepath.Join(installPath, "VC", "Tools", "MSVC", strings.TrimSpace(string(data)), "bin", "Hostx64", "x64", "cl.exe")
		if _, err := os.Stat(cl); err == nil {
			return cl
		}
	}

	return ""
}

// findMSBuild returns MSBuild.exe of the first Visual Studio installation
// that has one
func findMSBuild() string {
	instances, err := vssetup.Instances(false)
	if err != nil {
		return ""
	}

	for _, instance := range instances {
		installPath, err := instance.InstallationPath()
		if err != nil {
			continue
		}
		msbuild := filepath.Join(installPath, "MSBuild", "Current", "Bin", "MSBuild.exe")
		if _, err := os.Stat(msbuild); err == nil {
			return msbuild
		}
	}

	return ""
}
