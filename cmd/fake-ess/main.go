// Command fake-ess serves scripted match events over the streaming protocol
// so the announcer can be exercised locally.
package main

import (
	"os"

	"github.com/okian/blurber/internal/testevents"
)

func main() {
	if err := testevents.NewApp().Run(os.Args); err != nil {
		os.Stderr.WriteString("fake-ess: " + err.Error() + "\n")
		os.Exit(1)
	}
}
