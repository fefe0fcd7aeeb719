package main

import (
	"context"
	"fmt"
	"log"

	"github.com/almers2006/tresor/internal/server"
	"github.com/almers2006/tresor/internal/server/auth"
	"github.com/almers2006/tresor/internal/server/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()

	if cfg.IssueTokenUser != "" {
		token, err := auth.GenerateToken(cfg.IssueTokenUser, []byte(cfg.SecretKey), cfg.AccessTokenValidityDuration)
		if err != nil {
			log.Printf("%v", err)
			return
		}
		fmt.Println(token)
		return
	}

	app, err := server.NewApp(ctx, cfg)

	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)

}
