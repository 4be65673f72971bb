package cmd

import (
	"fmt"
)

const banner = `
     _           _                 _
  __| | __ _ ___| |__   __ _  __ _| |_ ___
 / _` + "`" + ` |/ _` + "`" + ` / __| '_ \ / _` + "`" + ` |/ _` + "`" + ` | __/ _ \
| (_| | (_| \__ \ | | | (_| | (_| | ||  __/
 \__,_|\__,_|___/_| |_|\__, |\__,_|\__\___|
                       |___/
`

func printBanner() {
	fmt.Printf("\x1b[34m%s\x1b[0m", banner)
	fmt.Printf("\x1b[32m  Admin Dashboard Gateway - Version %s\x1b[0m\n\n", Version)
}
