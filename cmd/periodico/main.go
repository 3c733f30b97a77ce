// Command periodico は読者向けニュースサイトと管理画面を提供するWebサーバー。
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/periodico/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
