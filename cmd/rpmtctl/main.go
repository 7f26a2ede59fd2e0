// rpmtctl ist das Verwaltungswerkzeug für Datenbank, Benutzer und Wartungsjobs.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(openApp).Execute(); err != nil {
		os.Exit(1)
	}
}
