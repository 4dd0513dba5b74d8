package main

// @title           Persona Core API
// @version         1.0
// @description     Retrieval-augmented persona chat. Replies are written in the persona's voice and grounded in the persona's historical posts.

// @contact.name   Persona Core
// @contact.url    https://github.com/custodia-labs/persona-core/issues

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8000
// @BasePath  /
// @schemes   http https

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/custodia-labs/persona-core/docs" // Registers /swagger/doc.json
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
