// Licensed under the MIT License.

package main

import (
	"log"
	"os"

	"github.com/snnbyyds/ubuntu-build/internal/exe"
	"github.com/snnbyyds/ubuntu-build/internal/logger"
	"github.com/snnbyyds/ubuntu-build/pkg/ubuildlib"
	"gopkg.in/alecthomas/kingpin.v2"
)

var (
	app = kingpin.New("ubuild", "Builds a live bootable Ubuntu ISO image")

	buildDir      = app.Flag("build-dir", "Directory to run the build out of.").Required().String()
	configFile    = app.Flag("config-file", "Path of the image build config file.").Required().String()
	outputIsoFile = app.Flag("output-iso-file", "Path to write the ISO image to.").Required().String()
	logFlags      = exe.SetupLogFlags(app)
)

func main() {
	app.Version(ubuildlib.ToolVersion)
	kingpin.MustParse(app.Parse(os.Args[1:]))

	logger.InitBestEffort(logFlags)

	err := ubuildlib.BuildImageWithConfigFile(*configFile, *buildDir, *outputIsoFile)
	if err != nil {
		log.Fatalf("image build failed:\n%v", err)
	}
}
