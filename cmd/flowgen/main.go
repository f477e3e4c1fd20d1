// flowgen — инструмент командной строки.
//
// Использование:
//
//	flowgen [--api-url URL] [--json] <command> [flags]
//
// Локальные команды (init, validate, migrate, export, plan, run local)
// работают с файлом flow; flow, run и schedule обращаются к API.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/shaiso/flowgen/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	_ = godotenv.Load()

	if err := cli.NewRootCmd(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
