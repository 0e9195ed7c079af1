// Package main is the entry point for the SaavnTune command line player.
//
// Build:
//
//	go build -o build/saavntune ./cmd
//
// Run:
//
//	./build/saavntune play "imagine dragons"
//	./build/saavntune ctl next
package main

import (
	"github.com/GiGurra/boa/pkg/boa"
	"github.com/tejashwikalptaru/saavntune/internal/app"
	"github.com/tejashwikalptaru/saavntune/internal/cli"
)

func main() {
	boa.CmdT[boa.NoParams]{
		Use:     "saavntune",
		Short:   "Stream music from the JioSaavn catalog",
		Version: app.GetVersionInfo().Version,
		SubCmds: cli.Commands(),
	}.Run()
}
