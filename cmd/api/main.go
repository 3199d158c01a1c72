package main

import (
	"go.uber.org/fx"

	"github.com/linzen78111/pos2/internal/app"
)

func main() {
	fx.New(app.Module).Run()
}
