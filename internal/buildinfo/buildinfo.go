// Package buildinfo holds process identity printed at startup.
package buildinfo

const (
	ProjectName = "liarsdice"

	GreetingCLI = "%s %s\nauthoritative room server for liar's dice\n\n"
)
