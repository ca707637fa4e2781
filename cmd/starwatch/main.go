package main

// @title           Starwatch API
// @version         1.0
// @description     Tracks GitHub stargazers of subscribed repositories and notifies subscribers when people star or unstar them.

// @contact.name   Starwatch OSS
// @contact.url    https://github.com/custodia-labs/starwatch/issues

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /api/v1
// @schemes   http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token. Format: "Bearer {token}"

import (
	"context"
	"os"
)

var version = "dev"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
