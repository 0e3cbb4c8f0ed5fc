// Command devtoken prints a signed bearer token for local development.
//
//	JWT_SECRET=dev go run ./cmd/devtoken -sub alice -role student
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/Shivanand-hulikatti/campus-events/internal/auth"
	"github.com/Shivanand-hulikatti/campus-events/internal/config"
)

type env struct {
	JWTSecret string `env:"JWT_SECRET,required,notEmpty"`
}

func main() {
	sub := flag.String("sub", "", "subject (user id)")
	role := flag.String("role", string(auth.RoleStudent), "role: admin or student")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	var cfg env
	if err := config.ParseEnv(&cfg); err != nil {
		log.Fatalf("config: %v", err)
	}

	token, err := auth.NewSigner(cfg.JWTSecret).Sign(*sub, auth.Role(*role), *ttl)
	if err != nil {
		log.Fatalf("sign: %v", err)
	}
	fmt.Println(token)
}
